// Package memory is an in-process ReportExporter used when no spreadsheet is
// configured, and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.ReportRow
	max  int
}

var _ ports.ReportExporter = (*Store)(nil)

// New keeps at most max rows, dropping the oldest. max <= 0 keeps all.
func New(max int) *Store {
	return &Store{max: max}
}

// AppendReport stores the row and returns a synthetic row reference.
func (s *Store) AppendReport(_ context.Context, row ports.ReportRow) (string, error) {
	if row.Kind == "" {
		return "", errors.New("report kind is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	if s.max > 0 && len(s.rows) > s.max {
		s.rows = append([]ports.ReportRow(nil), s.rows[len(s.rows)-s.max:]...)
	}
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the stored rows, oldest first.
func (s *Store) Rows() []ports.ReportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ReportRow(nil), s.rows...)
}
