package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"expenses/internal/catalog"
	"expenses/internal/core"
	"expenses/internal/log"
)

type (
	// Store is the record store the service writes to and reads from.
	Store interface {
		AddExpense(ctx context.Context, e core.Expense) (int64, error)
		ListByDateRange(ctx context.Context, rng core.DateRange) ([]core.Expense, error)
		SumCategory(ctx context.Context, rng core.DateRange, category string) (decimal.Decimal, error)
		SumByCategory(ctx context.Context, rng core.DateRange) ([]core.CategoryTotal, error)
	}

	// Publisher announces stored expenses. Optional.
	Publisher interface {
		PublishExpenseAdded(ctx context.Context, e core.Expense) error
	}

	// Catalog serves the category lookup document.
	Catalog interface {
		Load(ctx context.Context) (catalog.Document, error)
	}
)

// AddRequest carries caller supplied fields before validation.
type AddRequest struct {
	Date        string
	Amount      any // float64, json.Number-like string, or decimal.Decimal
	Category    string
	SubCategory string
	Note        string
}

// ListResult is the outcome of a range listing.
type ListResult struct {
	Range    core.DateRange
	Expenses []core.Expense
}

// SummaryResult holds per-category totals for a range.
type SummaryResult struct {
	Range  core.DateRange
	Totals []core.CategoryTotal
}

// ExpenseService orchestrates expense operations across storage and events
type ExpenseService struct {
	store     Store
	publisher Publisher
	catalog   Catalog
	policy    core.AmountPolicy
	logger    *log.Logger
	closers   []func() error
}

type Option func(*ExpenseService)

func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithAmountPolicy(p core.AmountPolicy) Option {
	return func(s *ExpenseService) { s.policy = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(fn func() error) Option {
	return func(s *ExpenseService) { s.closers = append(s.closers, fn) }
}

func NewExpenseService(store Store, cat Catalog, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:   store,
		catalog: cat,
		policy:  core.DefaultAmountPolicy(),
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentExpense)
	return s
}

// Add validates req, stores it and publishes an event. A publish failure is
// logged and does not fail the call: the row is already stored.
func (s *ExpenseService) Add(ctx context.Context, req AddRequest) (core.Expense, error) {
	const op = "add expense"

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, core.E(core.KindInvalidInput, op, err)
	}
	amount, err := s.NormalizeAmount(req.Amount)
	if err != nil {
		return core.Expense{}, core.E(core.KindInvalidInput, op, err)
	}

	e := core.Expense{
		Date:        date,
		Amount:      amount,
		Category:    strings.TrimSpace(req.Category),
		SubCategory: strings.TrimSpace(req.SubCategory),
		Note:        req.Note,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.E(core.KindInvalidInput, op, err)
	}

	id, err := s.store.AddExpense(ctx, e)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to add expense",
			append(log.NewFields().
				WithOperation(log.OpAdd).
				WithExpense(e.Date.String(), e.Amount.String(), e.Category).
				WithError(err).ToSlice(), log.FieldErrorKind, core.KindOf(err))...)
		return core.Expense{}, err
	}
	e.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseAdded(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish expense added message",
				log.FieldExpenseID, id, log.FieldError, err)
		}
	}

	return e, nil
}

// NormalizeAmount applies the amount policy to a raw argument.
func (s *ExpenseService) NormalizeAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case float64:
		return s.policy.Normalize(v)
	case float32:
		return s.policy.Normalize(float64(v))
	case int:
		return s.policy.Normalize(float64(v))
	case int64:
		return s.policy.Normalize(float64(v))
	case string:
		return s.policy.ParseAmount(v)
	case fmt.Stringer:
		return s.policy.ParseAmount(v.String())
	case nil:
		return decimal.Zero, fmt.Errorf("%w: missing", core.ErrInvalidAmount)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", core.ErrInvalidAmount, raw)
	}
}

// List returns the expenses dated within [start, end].
func (s *ExpenseService) List(ctx context.Context, start, end string) (ListResult, error) {
	rng, err := parseRange("list expenses", start, end)
	if err != nil {
		return ListResult{}, err
	}
	items, err := s.store.ListByDateRange(ctx, rng)
	if err != nil {
		s.logReadFailure(ctx, log.OpList, start, end, err)
		return ListResult{}, err
	}
	return ListResult{Range: rng, Expenses: items}, nil
}

// SumCategory returns the total of one category within [start, end]. The
// name is trimmed the same way Add trims it.
func (s *ExpenseService) SumCategory(ctx context.Context, start, end, category string) (core.DateRange, decimal.Decimal, error) {
	rng, err := parseRange("summarize category", start, end)
	if err != nil {
		return core.DateRange{}, decimal.Zero, err
	}
	total, err := s.store.SumCategory(ctx, rng, strings.TrimSpace(category))
	if err != nil {
		s.logReadFailure(ctx, log.OpSummarize, start, end, err)
		return core.DateRange{}, decimal.Zero, err
	}
	return rng, total, nil
}

// Summarize returns per-category totals within [start, end].
func (s *ExpenseService) Summarize(ctx context.Context, start, end string) (SummaryResult, error) {
	rng, err := parseRange("summarize expenses", start, end)
	if err != nil {
		return SummaryResult{}, err
	}
	totals, err := s.store.SumByCategory(ctx, rng)
	if err != nil {
		s.logReadFailure(ctx, log.OpSummarize, start, end, err)
		return SummaryResult{}, err
	}
	return SummaryResult{Range: rng, Totals: totals}, nil
}

// Categories returns the category catalog, creating it on first use.
func (s *ExpenseService) Categories(ctx context.Context) (catalog.Document, error) {
	return s.catalog.Load(ctx)
}

// Close releases registered resources and reports every failure.
func (s *ExpenseService) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *ExpenseService) logReadFailure(ctx context.Context, op, start, end string, err error) {
	s.logger.ErrorContext(ctx, "Failed to read expenses",
		append(log.NewFields().
			WithOperation(op).
			WithRange(start, end).
			WithError(err).ToSlice(), log.FieldErrorKind, core.KindOf(err))...)
}

func parseRange(op, start, end string) (core.DateRange, error) {
	rng, err := core.ParseRange(start, end)
	if err != nil {
		return core.DateRange{}, core.E(core.KindInvalidInput, op, err)
	}
	return rng, nil
}
