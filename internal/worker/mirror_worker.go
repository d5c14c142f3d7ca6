package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"paisable/internal/core"
	"paisable/internal/ports"
)

// MirrorWorker copies ledger changes to an external mirror (the spreadsheet).
// Events drive the fast path; the pending sweep catches changes whose events were lost.
type MirrorWorker struct {
	store     ports.TransactionStore
	tracker   ports.SyncTracker
	mirror    ports.LedgerMirror
	batchSize int
}

func NewMirrorWorker(store ports.TransactionStore, tracker ports.SyncTracker, mirror ports.LedgerMirror, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MirrorWorker{
		store:     store,
		tracker:   tracker,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleEvent mirrors the current state of the transaction named by ev.
// Events for records that no longer exist are dropped.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev core.TransactionEvent) error {
	slog.DebugContext(ctx, "Processing transaction event",
		"type", ev.Type,
		"transaction_id", ev.TransactionID)

	t, err := w.store.GetTransaction(ctx, ev.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Event for unknown transaction, dropping", "transaction_id", ev.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	// the stored record is authoritative; a stale "updated" after a delete still mirrors the deletion
	event := ev.Type
	if t.IsDeleted {
		event = core.EventDeleted
	}
	return w.sync(ctx, t, event)
}

func (w *MirrorWorker) sync(ctx context.Context, t core.Transaction, event core.EventType) error {
	if err := w.mirror.MirrorTransaction(ctx, t, event); err != nil {
		if mErr := w.tracker.MarkSyncError(ctx, t.ID); mErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "transaction_id", t.ID, "error", mErr)
		}
		return fmt.Errorf("mirror transaction: %w", err)
	}
	if err := w.tracker.MarkSynced(ctx, t.ID, t.UpdatedAt); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// ProcessPending mirrors up to one batch of unsynced transactions.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck sweeps a larger batch to recover from worker downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *MirrorWorker) processPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.tracker.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(ids))

	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		t, err := w.store.GetTransaction(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "transaction_id", id, "error", err)
			if err := w.tracker.MarkSyncError(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "transaction_id", id, "error", err)
			}
			continue
		}
		event := core.EventUpdated
		if t.IsDeleted {
			event = core.EventDeleted
		}
		if err := w.sync(ctx, t, event); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "transaction_id", id, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// Poller runs a task on a fixed interval until stopped.
type Poller struct {
	name     string
	interval time.Duration
	task     func(context.Context) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPoller(name string, interval time.Duration, task func(context.Context) error) *Poller {
	return &Poller{name: name, interval: interval, task: task}
}

// Start begins the loop. Returns an error if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("%s is already running", p.name)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Poller started", "name", p.name, "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Poller stopped gracefully", "name", p.name)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Poller stop timed out", "name", p.name)
		return ctx.Err()
	}
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	if err := p.task(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Poller task failed", "name", p.name, "error", err)
	}
}
