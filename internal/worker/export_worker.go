// Package worker mirrors stored expenses into the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/report"
	"expenses/internal/sheets"
)

// Store is the part of the record store the worker needs.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	PendingExports(ctx context.Context, limit int) ([]core.Expense, error)
	IsExported(ctx context.Context, id int64) (bool, error)
	MarkExported(ctx context.Context, id int64, ref string) error
}

// errNotMarked means the row reached the sheet but its export was not recorded.
var errNotMarked = errors.New("expense appended but not marked as exported")

// ExportWorker appends expenses to the sheet once each. Events drive the
// normal path; a periodic scan of unexported rows recovers lost messages.
type ExportWorker struct {
	store     Store
	sheet     sheets.ExpenseWriter
	batchSize int
	logger    *log.Logger

	// serializes exports so an event and the backfill never write the same row twice
	mu sync.Mutex
	// sheet refs of rows appended whose MarkExported failed; retried without appending
	unmarked map[int64]string
}

func NewExportWorker(store Store, sheet sheets.ExpenseWriter, batchSize int, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &ExportWorker{
		store:     store,
		sheet:     sheet,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
		unmarked:  make(map[int64]string),
	}
}

// HandleExpenseAdded exports the expense named by msg. A message for a row
// that no longer exists is dropped; other failures are returned so the
// message is redelivered.
func (w *ExportWorker) HandleExpenseAdded(ctx context.Context, msg *amqp.ExpenseAddedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense added message",
		log.FieldExpenseID, msg.ID,
		"message_id", msg.MessageID)

	e, err := w.store.GetExpense(ctx, msg.ID)
	if core.KindOf(err) == core.KindNotFound {
		w.logger.WarnContext(ctx, "Expense not found, dropping message", log.FieldExpenseID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if _, err := w.export(ctx, e); err != nil {
		if errors.Is(err, errNotMarked) {
			// The backfill retries the mark; redelivery would not help.
			return nil
		}
		return err
	}
	return nil
}

// ProcessPending exports up to one batch of unexported expenses and returns
// how many were recorded as exported. Sheet failures are logged and left
// pending; a failure to record an export stops the batch.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending expenses", log.FieldCount, len(pending))

	exported := 0
	for _, e := range pending {
		ok, err := w.export(ctx, e)
		if errors.Is(err, errNotMarked) {
			return exported, err
		}
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to export expense",
				log.FieldExpenseID, e.ID,
				log.FieldError, err)
			continue
		}
		if ok {
			exported++
		}
	}
	return exported, nil
}

// Run drains the backlog, then rescans it every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	w.catchUp(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}

// catchUp processes full batches until the backlog is empty or a batch
// makes no progress.
func (w *ExportWorker) catchUp(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := w.ProcessPending(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err)
			return
		}
		total += n
		if n < w.batchSize {
			break
		}
	}
	w.logger.InfoContext(ctx, "Startup export completed",
		log.FieldOperation, log.OpStartup,
		log.FieldCount, total)
}

// export appends e unless it is already exported and reports whether the
// export was recorded by this call.
func (w *ExportWorker) export(ctx context.Context, e core.Expense) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	done, err := w.store.IsExported(ctx, e.ID)
	if err != nil {
		return false, fmt.Errorf("check export state: %w", err)
	}
	if done {
		delete(w.unmarked, e.ID)
		w.logger.DebugContext(ctx, "Expense already exported", log.FieldExpenseID, e.ID)
		return false, nil
	}

	if e.Category == "" {
		e.Category = report.Uncategorized
	}

	ref, appended := w.unmarked[e.ID]
	if !appended {
		ref, err = w.sheet.Append(ctx, e)
		if err != nil {
			return false, fmt.Errorf("append to sheet: %w", err)
		}
	}

	if err := w.store.MarkExported(ctx, e.ID, ref); err != nil {
		w.unmarked[e.ID] = ref
		w.logger.ErrorContext(ctx, "Failed to mark as exported",
			log.FieldExpenseID, e.ID,
			"sheet_ref", ref,
			log.FieldError, err)
		return false, fmt.Errorf("%w: %w", errNotMarked, err)
	}
	delete(w.unmarked, e.ID)

	w.logger.InfoContext(ctx, "Exported expense",
		log.FieldOperation, log.OpExport,
		log.FieldExpenseID, e.ID,
		"sheet_ref", ref,
		log.FieldAmount, core.FormatAmount(e.Amount),
		log.FieldCategory, e.Category)
	return true, nil
}
