// Package memory is an in-process stand-in for the spreadsheet, used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	"expenses/internal/sheets"
)

var _ sheets.ExpenseWriter = (*Sheet)(nil)

type Sheet struct {
	mu   sync.Mutex
	name string
	rows [][]any
}

func New(name string) *Sheet {
	return &Sheet{name: name}
}

// Append stores the row and returns an A1 style reference to it.
func (s *Sheet) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(e))
	n := len(s.rows)
	return fmt.Sprintf("%s!A%d:F%d", s.name, n, n), nil
}

// Rows returns a copy of the appended rows.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
