package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"paisable/internal/core"
	"paisable/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev core.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// sequentialIDs returns tx-1, tx-2, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestTransactions(t *testing.T) (*TransactionService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, pub, nil)
	svc.newID = sequentialIDs("tx")
	return svc, store, pub
}

func mustCreate(t *testing.T, svc *TransactionService, owner, name, category, cost, date string, income bool) core.Transaction {
	t.Helper()
	occurred, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", date, err)
	}
	tx, err := svc.Create(context.Background(), owner, core.NewTransaction{
		Name:       name,
		Category:   category,
		Cost:       core.MustMoney(cost),
		OccurredOn: occurred,
		IsIncome:   income,
	})
	if err != nil {
		t.Fatalf("Create(%s) error: %v", name, err)
	}
	return tx
}

// failingReceipts wraps a receipt store and fails every update.
type failingReceipts struct {
	*memory.Store
}

func (f failingReceipts) UpdateReceipt(context.Context, core.Receipt) (core.Receipt, error) {
	return core.Receipt{}, &core.StoreError{Op: "update receipt", Err: errors.New("disk full")}
}

type stubExtractor struct {
	draft core.ReceiptDraft
	err   error
	calls int
}

func (s *stubExtractor) ExtractReceipt(context.Context, []byte, string) (core.ReceiptDraft, error) {
	s.calls++
	return s.draft, s.err
}

type memBlobs struct {
	puts map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if m.puts == nil {
		m.puts = map[string][]byte{}
	}
	m.puts[name] = data
	return "mem://" + name, nil
}
