package report

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func rng(t *testing.T, start, end string) core.DateRange {
	t.Helper()
	r, err := core.ParseRange(start, end)
	require.NoError(t, err)
	return r
}

func TestExpenseList(t *testing.T) {
	r := rng(t, "2024-01-01", "2024-01-31")
	list := []core.Expense{
		{Date: core.NewDate(2024, 1, 20), Amount: decimal.NewFromFloat(12), Category: "Transport", SubCategory: "Fuel", Note: "road trip"},
		{Date: core.NewDate(2024, 1, 5), Amount: decimal.NewFromFloat(42.50), Category: "Food", SubCategory: "Groceries"},
		{Date: core.NewDate(2024, 1, 2), Amount: decimal.NewFromFloat(3.1), Category: "Food", Note: "coffee"},
	}

	want := "Expenses from 2024-01-01 to 2024-01-31:\n" +
		"- 2024-01-20: 12 (Transport → Fuel | road trip)\n" +
		"- 2024-01-05: 42.5 (Food → Groceries)\n" +
		"- 2024-01-02: 3.1 (Food | coffee)\n" +
		"\nTotal: 57.6"
	assert.Equal(t, want, ExpenseList(r, list))
}

func TestEmptyResults(t *testing.T) {
	r := rng(t, "2024-01-01", "2024-01-31")
	msg := "No expenses found between 2024-01-01 and 2024-01-31."
	assert.Equal(t, msg, ExpenseList(r, nil))
	assert.Equal(t, msg, Summary(r, nil))
}

func TestSummary(t *testing.T) {
	r := rng(t, "2024-03-01", "2024-03-31")
	got := Summary(r, []core.CategoryTotal{
		{Category: "Utilities", Total: decimal.NewFromInt(10)},
		{Category: "Food", Total: decimal.NewFromFloat(0.3)},
		{Category: "", Total: decimal.NewFromFloat(0.2)},
	})
	want := "Expense summary from 2024-03-01 to 2024-03-31:\n" +
		"- Utilities: 10\n" +
		"- Food: 0.3\n" +
		"- Uncategorized: 0.2\n" +
		"\nGrand Total: 10.5"
	assert.Equal(t, want, got)
}

func TestCategoryTotal(t *testing.T) {
	r := rng(t, "2024-03-01", "2024-03-31")
	assert.Equal(t, "Total for Food: 0 between 2024-03-01 and 2024-03-31", CategoryTotal(r, "Food", decimal.Zero))
	assert.Equal(t, "Total for Food: 4.75 between 2024-03-01 and 2024-03-31", CategoryTotal(r, "Food", decimal.NewFromFloat(4.75)))
}

func TestAddMessages(t *testing.T) {
	e := core.Expense{Date: core.NewDate(2024, 1, 5), Amount: decimal.NewFromFloat(42.5), Category: "Food"}
	assert.Equal(t, "Added: 42.5 for Food (2024-01-05)", Added(e))

	err := core.E(core.KindStorage, "add expense", errors.New("database is locked"))
	assert.Equal(t, "Failed to add expense: database is locked", AddFailed(err))
}
