package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/catalog"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/report"
	"expenses/internal/storage"
)

type fakePublisher struct {
	published []core.Expense
	err       error
}

func (f *fakePublisher) PublishExpenseAdded(_ context.Context, e core.Expense) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, e)
	return nil
}

type failingStore struct{ Store }

func (failingStore) AddExpense(context.Context, core.Expense) (int64, error) {
	return 0, core.E(core.KindStorage, "add expense", errors.New("attempt to write a readonly database"))
}

func newTestService(t *testing.T, opts ...Option) (*ExpenseService, *storage.SQLiteRepository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "expenses.db"), nil)
	require.NoError(t, err)
	opts = append(opts, WithCloser(repo.Close))
	svc := NewExpenseService(repo, catalog.NewStore(filepath.Join(dir, "categories.json"), nil), opts...)
	t.Cleanup(func() { svc.Close() })
	return svc, repo
}

func TestAddThenList(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	e, err := svc.Add(ctx, AddRequest{Date: "2024-01-05", Amount: 42.50, Category: "Food", SubCategory: "Groceries"})
	require.NoError(t, err)
	assert.Positive(t, e.ID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, e.ID, pub.published[0].ID)

	res, err := svc.List(ctx, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, res.Expenses, 1)
	got := res.Expenses[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "2024-01-05", got.Date.String())
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(42.5)))
	assert.Equal(t, "Food", got.Category)
}

func TestSummaryMatchesListTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, req := range []AddRequest{
		{Date: "2024-02-01", Amount: 10.10, Category: "Food"},
		{Date: "2024-02-03", Amount: "5,45", Category: "Transport"},
		{Date: "2024-02-10", Amount: 0.2, Category: "Food"},
		{Date: "2024-02-15", Amount: 0.123456789, Category: "Food"},
		{Date: "2024-02-28", Amount: 99.99, Category: "Utilities"},
		{Date: "2024-03-01", Amount: 1000, Category: "Utilities"},
	} {
		_, err := svc.Add(ctx, req)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "2024-02-01", "2024-02-29")
	require.NoError(t, err)
	listTotal := decimal.Zero
	for _, e := range list.Expenses {
		listTotal = listTotal.Add(e.Amount)
	}

	sum, err := svc.Summarize(ctx, "2024-02-01", "2024-02-29")
	require.NoError(t, err)
	grand := decimal.Zero
	for _, ct := range sum.Totals {
		grand = grand.Add(ct.Total)

		_, single, err := svc.SumCategory(ctx, "2024-02-01", "2024-02-29", ct.Category)
		require.NoError(t, err)
		assert.True(t, single.Equal(ct.Total), ct.Category)
	}
	assert.Equal(t, listTotal.String(), grand.String())
	assert.Equal(t, "115.863456789", grand.String())

	assert.Contains(t, report.ExpenseList(list.Range, list.Expenses), "\nTotal: 115.863456789")
	assert.Contains(t, report.Summary(sum.Range, sum.Totals), "\nGrand Total: 115.863456789")
}

func TestSumCategoryTrimsName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddRequest{Date: "2024-02-01", Amount: 4.5, Category: " Food"})
	require.NoError(t, err)

	_, total, err := svc.SumCategory(ctx, "2024-02-01", "2024-02-29", "Food ")
	require.NoError(t, err)
	assert.Equal(t, "4.5", total.String())
}

func TestEmptyRangeIsNotAFault(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, total, err := svc.SumCategory(ctx, "2030-01-01", "2030-01-31", "Food")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	sum, err := svc.Summarize(ctx, "2030-01-01", "2030-01-31")
	require.NoError(t, err)
	assert.Empty(t, sum.Totals)
}

func TestAddValidation(t *testing.T) {
	svc, _ := newTestService(t, WithAmountPolicy(core.AmountPolicy{AllowNegative: false, Decimals: 2}))
	ctx := context.Background()

	cases := []struct {
		name string
		req  AddRequest
		want error
	}{
		{"bad date", AddRequest{Date: "05/01/2024", Amount: 1.0, Category: "Food"}, core.ErrInvalidDate},
		{"negative", AddRequest{Date: "2024-01-05", Amount: -1.0, Category: "Food"}, core.ErrNegative},
		{"missing amount", AddRequest{Date: "2024-01-05", Category: "Food"}, core.ErrInvalidAmount},
		{"bad amount text", AddRequest{Date: "2024-01-05", Amount: "ten", Category: "Food"}, core.ErrInvalidAmount},
		{"empty category", AddRequest{Date: "2024-01-05", Amount: 1.0, Category: " "}, core.ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
		})
	}

	e, err := svc.Add(ctx, AddRequest{Date: "2024-01-05", Amount: 3.14159, Category: "Food"})
	require.NoError(t, err)
	assert.Equal(t, "3.14", e.Amount.String())
}

func TestPublishFailureDoesNotFailAdd(t *testing.T) {
	svc, _ := newTestService(t, WithPublisher(&fakePublisher{err: errors.New("broker down")}))
	_, err := svc.Add(context.Background(), AddRequest{Date: "2024-01-05", Amount: 1.0, Category: "Food"})
	assert.NoError(t, err)
}

func TestStoreFailureKeepsKind(t *testing.T) {
	svc := NewExpenseService(failingStore{}, nil)
	_, err := svc.Add(context.Background(), AddRequest{Date: "2024-01-05", Amount: 1.0, Category: "Food"})
	require.Error(t, err)
	assert.Equal(t, core.KindStorage, core.KindOf(err))
	assert.Equal(t, "attempt to write a readonly database", core.Cause(err))
}

func TestReadFailureIsLoggedWithRange(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	svc, repo := newTestService(t, WithLogger(logger))
	require.NoError(t, repo.Close())

	_, err := svc.List(context.Background(), "2024-01-01", "2024-01-31")
	require.Error(t, err)
	assert.Equal(t, core.KindStorage, core.KindOf(err))

	out := buf.String()
	assert.Contains(t, out, "operation=list")
	assert.Contains(t, out, "start_date=2024-01-01")
	assert.Contains(t, out, "end_date=2024-01-31")
	assert.Contains(t, out, "error_kind=storage")
}

func TestInvalidRange(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), "2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, core.ErrInvalidRange)
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))
}

func TestCategories(t *testing.T) {
	svc, _ := newTestService(t)
	doc, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultContent, string(doc.Raw))
}

func TestCloseJoinsErrors(t *testing.T) {
	svc := NewExpenseService(nil, nil,
		WithCloser(func() error { return errors.New("storage: boom") }),
		WithCloser(func() error { return nil }),
		WithCloser(func() error { return errors.New("amqp: boom") }),
	)
	err := svc.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage: boom")
	assert.Contains(t, err.Error(), "amqp: boom")

	assert.NoError(t, NewExpenseService(nil, nil).Close())
}
