package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted textual form for expense dates. Storing
// dates in this form keeps lexicographic and calendar ordering identical.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
		raw string // stored text that is not in DateLayout form
	}

	Expense struct {
		ID          int64 // assigned by the store on insert
		Date        Date
		Amount      decimal.Decimal
		Category    string
		SubCategory string
		Note        string
	}

	// CategoryTotal is the sum of amounts for one category in a range.
	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}

	// DateRange is an inclusive calendar range.
	DateRange struct {
		Start Date
		End   Date
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidRange  = errors.New("start date is after end date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNegative      = errors.New("negative amounts are not allowed")
	ErrEmptyCategory = errors.New("empty category")
)

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// StoredDate parses a date read back from storage. Text that is not in
// YYYY-MM-DD form is kept verbatim; see Legacy.
func StoredDate(s string) Date {
	if d, err := ParseDate(s); err == nil {
		return d
	}
	return Date{raw: s}
}

// Legacy reports whether d holds stored text that could not be parsed.
func (d Date) Legacy() bool {
	return d.raw != ""
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String returns the storage form of the date.
func (d Date) String() string {
	if d.raw != "" {
		return d.raw
	}
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() && d.raw == "" {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// ParseRange parses both bounds and checks their order.
func ParseRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if err := r.Start.Validate(); err != nil {
		return err
	}
	if err := r.End.Validate(); err != nil {
		return err
	}
	if r.Start.After(r.End.Time) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls inside the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
