// Package memory is an in-process mirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"contas/internal/core"
)

type row struct {
	entry    core.LedgerEntry
	category string
}

type Store struct {
	mu   sync.Mutex
	rows []row
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.LedgerEntry, categoryName string) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row{entry: e, category: categoryName})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Delete removes the row with the given entry ID. Missing IDs are ignored.
func (s *Store) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.entry.ID == entryID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Entries returns a copy of the mirrored entries in append order.
func (s *Store) Entries() []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LedgerEntry, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.entry
	}
	return out
}
