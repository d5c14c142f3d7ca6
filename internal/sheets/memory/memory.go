// Package memory is an in-process ledger mirror used when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"paisable/internal/core"
)

type Row struct {
	Transaction core.Transaction
	Event       core.EventType
}

type Mirror struct {
	mu    sync.Mutex
	order []string
	rows  map[string]Row
}

func New() *Mirror {
	return &Mirror{rows: map[string]Row{}}
}

// MirrorTransaction upserts the row for t, keeping first-seen order like a sheet would.
func (m *Mirror) MirrorTransaction(_ context.Context, t core.Transaction, event core.EventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.rows[t.ID] = Row{Transaction: t, Event: event}
	return nil
}

// Rows returns a snapshot in insertion order.
func (m *Mirror) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id])
	}
	return out
}
