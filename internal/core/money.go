// Package core provides the expense domain types.
//
// This file contains the amount policy: how caller supplied amounts are
// checked and normalized before they reach storage.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPolicy decides which amounts are accepted.
//
// Decimals < 0 keeps the amount as supplied; otherwise the amount is rounded
// half-up to that many decimal places.
type AmountPolicy struct {
	AllowNegative bool
	Decimals      int32
}

// DefaultAmountPolicy accepts any finite amount unchanged.
func DefaultAmountPolicy() AmountPolicy {
	return AmountPolicy{AllowNegative: true, Decimals: -1}
}

// Normalize validates a float amount and applies rounding.
func (p AmountPolicy) Normalize(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	return p.apply(decimal.NewFromFloat(v))
}

// ParseAmount accepts both dot (12.34) and comma (12,34) decimal separators.
func (p AmountPolicy) ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	return p.apply(d)
}

func (p AmountPolicy) apply(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() && !p.AllowNegative {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegative, d)
	}
	if p.Decimals >= 0 {
		d = d.Round(p.Decimals)
	}
	return d, nil
}

// FormatAmount renders an amount in its shortest exact decimal form (42.5, 12, 0).
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}
