package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Expense is a raw row of the expenses table.
type Expense struct {
	ID          int64
	Date        string
	Amount      float64
	Category    sql.NullString
	SubCategory sql.NullString
	Note        sql.NullString
}

const createExpense = `
INSERT INTO expenses (date, amount, category, sub_category, note)
VALUES (?, ?, ?, ?, ?)
`

type CreateExpenseParams struct {
	Date        string
	Amount      float64
	Category    string
	SubCategory string
	Note        string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense,
		arg.Date,
		arg.Amount,
		arg.Category,
		arg.SubCategory,
		arg.Note,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getExpense = `
SELECT id, date, amount, category, sub_category, note
FROM expenses
WHERE id = ?
`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	var e Expense
	err := row.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.SubCategory, &e.Note)
	return e, err
}

const listExpensesByDate = `
SELECT id, date, amount, category, sub_category, note
FROM expenses
WHERE date BETWEEN ? AND ?
ORDER BY date DESC, id DESC
`

func (q *Queries) ListExpensesByDate(ctx context.Context, start, end string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByDate, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.SubCategory, &e.Note); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategoryAmounts = `
SELECT category, amount
FROM expenses
WHERE date BETWEEN ? AND ?
ORDER BY id
`

type CategoryAmount struct {
	Category sql.NullString
	Amount   float64
}

func (q *Queries) ListCategoryAmounts(ctx context.Context, start, end string) ([]CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, listCategoryAmounts, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryAmount
	for rows.Next() {
		var ca CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Amount); err != nil {
			return nil, err
		}
		items = append(items, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAmountsForCategory = `
SELECT amount
FROM expenses
WHERE date BETWEEN ? AND ? AND category = ?
ORDER BY id
`

func (q *Queries) ListAmountsForCategory(ctx context.Context, start, end, category string) ([]float64, error) {
	rows, err := q.db.QueryContext(ctx, listAmountsForCategory, start, end, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []float64
	for rows.Next() {
		var amount float64
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		items = append(items, amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const pendingExports = `
SELECT e.id, e.date, e.amount, e.category, e.sub_category, e.note
FROM expenses e
LEFT JOIN expense_exports x ON x.expense_id = e.id
WHERE x.expense_id IS NULL
ORDER BY e.id
LIMIT ?
`

func (q *Queries) PendingExports(ctx context.Context, limit int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, pendingExports, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Amount, &e.Category, &e.SubCategory, &e.Note); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markExported = `
INSERT INTO expense_exports (expense_id, exported_at, sheet_ref)
VALUES (?, ?, ?)
ON CONFLICT (expense_id) DO NOTHING
`

type MarkExportedParams struct {
	ExpenseID  int64
	ExportedAt string
	SheetRef   string
}

// MarkExported reports whether a new export row was written.
func (q *Queries) MarkExported(ctx context.Context, arg MarkExportedParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, markExported, arg.ExpenseID, arg.ExportedAt, arg.SheetRef)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const isExported = `
SELECT EXISTS (SELECT 1 FROM expense_exports WHERE expense_id = ?)
`

func (q *Queries) IsExported(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, isExported, id).Scan(&exists)
	return exists, err
}
