// Package report renders expense query results as human-readable text.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
)

// Uncategorized labels rows stored without a category.
const Uncategorized = "Uncategorized"

// Added confirms a successful insert.
func Added(e core.Expense) string {
	return fmt.Sprintf("Added: %s for %s (%s)", core.FormatAmount(e.Amount), e.Category, e.Date)
}

// AddFailed reports a failed insert with the underlying error message.
func AddFailed(err error) string {
	return "Failed to add expense: " + core.Cause(err)
}

// NoExpenses is the empty-result message for a range.
func NoExpenses(start, end core.Date) string {
	return fmt.Sprintf("No expenses found between %s and %s.", start, end)
}

// ExpenseList renders every entry of the range followed by the total.
func ExpenseList(rng core.DateRange, expenses []core.Expense) string {
	if len(expenses) == 0 {
		return NoExpenses(rng.Start, rng.End)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Expenses from %s to %s:\n", rng.Start, rng.End)

	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
		b.WriteString(Entry(e))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nTotal: %s", core.FormatAmount(total))
	return b.String()
}

// Entry renders one line: "- date: amount (category[ → sub][ | note])".
func Entry(e core.Expense) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %s (%s", e.Date, core.FormatAmount(e.Amount), categoryLabel(e.Category))
	if e.SubCategory != "" {
		b.WriteString(" → ")
		b.WriteString(e.SubCategory)
	}
	if e.Note != "" {
		b.WriteString(" | ")
		b.WriteString(e.Note)
	}
	b.WriteByte(')')
	return b.String()
}

// CategoryTotal renders the single-category summary. A category with no
// rows in range reports zero.
func CategoryTotal(rng core.DateRange, category string, total decimal.Decimal) string {
	return fmt.Sprintf("Total for %s: %s between %s and %s", category, core.FormatAmount(total), rng.Start, rng.End)
}

// Summary renders per-category totals followed by the grand total.
func Summary(rng core.DateRange, totals []core.CategoryTotal) string {
	if len(totals) == 0 {
		return NoExpenses(rng.Start, rng.End)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Expense summary from %s to %s:\n", rng.Start, rng.End)

	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.Total)
		fmt.Fprintf(&b, "- %s: %s\n", categoryLabel(t.Category), core.FormatAmount(t.Total))
	}
	fmt.Fprintf(&b, "\nGrand Total: %s", core.FormatAmount(grand))
	return b.String()
}

func categoryLabel(c string) string {
	if c == "" {
		return Uncategorized
	}
	return c
}
