package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	"expenses/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

// NewSQLiteRepository opens the database at dbPath, creating it and the
// expenses table when absent.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("Expense store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddExpense inserts e and returns the identity assigned by the store.
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	const op = "add expense"
	if err := e.Validate(); err != nil {
		return 0, core.E(core.KindInvalidInput, op, err)
	}

	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Date:        e.Date.String(),
		Amount:      e.Amount.InexactFloat64(),
		Category:    e.Category,
		SubCategory: e.SubCategory,
		Note:        e.Note,
	})
	if err != nil {
		return 0, core.E(core.KindStorage, op, err)
	}

	r.logger.InfoContext(ctx, "Expense saved",
		log.FieldExpenseID, id,
		log.FieldDate, e.Date.String(),
		log.FieldAmount, e.Amount.String(),
		log.FieldCategory, e.Category)

	return id, nil
}

// GetExpense returns a single expense by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	const op = "get expense"
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.E(core.KindNotFound, op, fmt.Errorf("expense %d not found", id))
	}
	if err != nil {
		return core.Expense{}, core.E(core.KindStorage, op, err)
	}
	return r.toCore(ctx, row), nil
}

// ListByDateRange returns expenses in rng, newest date first.
func (r *SQLiteRepository) ListByDateRange(ctx context.Context, rng core.DateRange) ([]core.Expense, error) {
	const op = "list expenses"
	if err := rng.Validate(); err != nil {
		return nil, core.E(core.KindInvalidInput, op, err)
	}

	rows, err := r.queries.ListExpensesByDate(ctx, rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, core.E(core.KindStorage, op, err)
	}

	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, r.toCore(ctx, row))
	}

	r.logger.DebugContext(ctx, "Listed expenses",
		log.FieldStartDate, rng.Start.String(),
		log.FieldEndDate, rng.End.String(),
		log.FieldCount, len(expenses))

	return expenses, nil
}

// SumCategory returns the total for one category in rng; zero when nothing
// matches. Amounts are added as decimals row by row, the same way a listing
// totals them.
func (r *SQLiteRepository) SumCategory(ctx context.Context, rng core.DateRange, category string) (decimal.Decimal, error) {
	const op = "sum category"
	if err := rng.Validate(); err != nil {
		return decimal.Zero, core.E(core.KindInvalidInput, op, err)
	}

	amounts, err := r.queries.ListAmountsForCategory(ctx, rng.Start.String(), rng.End.String(), category)
	if err != nil {
		return decimal.Zero, core.E(core.KindStorage, op, err)
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total, nil
}

// SumByCategory returns per-category totals in rng, largest first. Ties are
// ordered by category name.
func (r *SQLiteRepository) SumByCategory(ctx context.Context, rng core.DateRange) ([]core.CategoryTotal, error) {
	const op = "sum by category"
	if err := rng.Validate(); err != nil {
		return nil, core.E(core.KindInvalidInput, op, err)
	}

	rows, err := r.queries.ListCategoryAmounts(ctx, rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, core.E(core.KindStorage, op, err)
	}

	index := make(map[string]int)
	var totals []core.CategoryTotal
	for _, row := range rows {
		i, ok := index[row.Category.String]
		if !ok {
			i = len(totals)
			index[row.Category.String] = i
			totals = append(totals, core.CategoryTotal{Category: row.Category.String, Total: decimal.Zero})
		}
		totals[i].Total = totals[i].Total.Add(decimal.NewFromFloat(row.Amount))
	}

	slices.SortStableFunc(totals, func(a, b core.CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return totals, nil
}

// PendingExports returns up to limit expenses not yet mirrored to the spreadsheet.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Expense, error) {
	const op = "pending exports"
	rows, err := r.queries.PendingExports(ctx, int64(limit))
	if err != nil {
		return nil, core.E(core.KindStorage, op, err)
	}
	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, r.toCore(ctx, row))
	}
	return expenses, nil
}

// IsExported reports whether the expense has already been mirrored.
func (r *SQLiteRepository) IsExported(ctx context.Context, id int64) (bool, error) {
	ok, err := r.queries.IsExported(ctx, id)
	if err != nil {
		return false, core.E(core.KindStorage, "is exported", err)
	}
	return ok, nil
}

// MarkExported records that the expense was written to ref. Marking twice is a no-op.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, ref string) error {
	inserted, err := r.queries.MarkExported(ctx, MarkExportedParams{
		ExpenseID:  id,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		SheetRef:   ref,
	})
	if err != nil {
		return core.E(core.KindStorage, "mark exported", err)
	}
	if inserted {
		r.logger.InfoContext(ctx, "Expense marked as exported", log.FieldExpenseID, id, "sheet_ref", ref)
	}
	return nil
}

// toCore converts a row. Dates written by older tools that are not in
// YYYY-MM-DD form are kept as stored text rather than failing the read.
func (r *SQLiteRepository) toCore(ctx context.Context, row Expense) core.Expense {
	d := core.StoredDate(row.Date)
	if d.Legacy() {
		r.logger.WarnContext(ctx, "Expense has a non ISO date, keeping stored text",
			log.FieldExpenseID, row.ID,
			log.FieldDate, row.Date)
	}
	return core.Expense{
		ID:          row.ID,
		Date:        d,
		Amount:      decimal.NewFromFloat(row.Amount),
		Category:    row.Category.String,
		SubCategory: row.SubCategory.String,
		Note:        row.Note.String,
	}
}
