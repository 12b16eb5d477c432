package sheets

import (
	"context"

	"expenses/internal/core"
)

// Header is the column layout of the mirror sheet.
var Header = []string{"ID", "Date", "Amount", "Category", "Sub-category", "Note"}

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)

// Row renders e in Header order.
func Row(e core.Expense) []any {
	return []any{e.ID, e.Date.String(), e.Amount.InexactFloat64(), e.Category, e.SubCategory, e.Note}
}
