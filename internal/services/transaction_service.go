package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"paisable/internal/core"
	"paisable/internal/log"
	"paisable/internal/ports"
)

// ExportHeader is the fixed column order of the CSV export.
var ExportHeader = []string{"id", "user", "name", "category", "cost", "addedOn", "isIncome"}

// TransactionService enforces ownership and validation around the ledger
// store, publishes change events and invalidates derived views.
type TransactionService struct {
	store    ports.TransactionStore
	events   ports.EventPublisher
	logger   *log.StructuredLogger
	onChange []func(ownerID string)
	now      func() time.Time
	newID    func() string
}

func NewTransactionService(store ports.TransactionStore, events ports.EventPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	return &TransactionService{
		store:  store,
		events: events,
		logger: log.NewStructuredLogger(logger),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// OnChange registers fn to run after every successful mutation of an owner's ledger.
func (s *TransactionService) OnChange(fn func(ownerID string)) {
	s.onChange = append(s.onChange, fn)
}

func (s *TransactionService) changed(ctx context.Context, typ core.EventType, t core.Transaction) {
	for _, fn := range s.onChange {
		fn(t.OwnerID)
	}
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, core.NewTransactionEvent(typ, t)); err != nil {
		// The ledger write already succeeded; the mirror catches up later.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID, "type", typ, "error", err)
	}
}

// Create validates and stores a new record owned by ownerID.
func (s *TransactionService) Create(ctx context.Context, ownerID string, in core.NewTransaction) (core.Transaction, error) {
	return s.create(ctx, ownerID, s.newID(), in)
}

func (s *TransactionService) create(ctx context.Context, ownerID, id string, in core.NewTransaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.MissingParameter("owner")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	now := s.now()
	t := core.Transaction{
		ID:         id,
		OwnerID:    ownerID,
		Name:       in.Name,
		Category:   in.Category,
		Cost:       in.Cost,
		OccurredOn: in.OccurredOn.UTC(),
		IsIncome:   in.IsIncome,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	stored, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", core.WrapStore("create transaction", err))
	}

	s.logger.LogTransactionMutation(ctx, log.OpCreate, ownerID, stored.ID, stored.Category, stored.Cost.Cents, stored.IsIncome)
	s.changed(ctx, core.EventCreated, stored)
	return stored, nil
}

// owned loads id and checks it belongs to ownerID. NotFound wins over Forbidden.
func (s *TransactionService) owned(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	if id == "" {
		return core.Transaction{}, core.MissingParameter("id")
	}
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, core.WrapStore("get transaction", err))
	}
	if t.OwnerID != ownerID {
		return core.Transaction{}, core.ErrForbidden
	}
	return t, nil
}

// Get returns the record by id, including soft-deleted ones.
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return s.owned(ctx, ownerID, id)
}

// Update applies a partial update. Ownership and validation are checked
// before anything is written; a soft-deleted record is NotFound.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if cur.IsDeleted {
		return core.Transaction{}, core.ErrNotFound
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return core.Transaction{}, err
	}
	next.UpdatedAt = s.now()

	stored, err := s.store.UpdateTransaction(ctx, next)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, core.WrapStore("update transaction", err))
	}

	s.logger.LogTransactionMutation(ctx, log.OpUpdate, ownerID, stored.ID, stored.Category, stored.Cost.Cents, stored.IsIncome)
	s.changed(ctx, core.EventUpdated, stored)
	return stored, nil
}

// Delete soft-deletes the record. Deleting an already deleted record succeeds.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if cur.IsDeleted {
		return nil
	}
	if err := s.store.SoftDeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, core.WrapStore("soft delete transaction", err))
	}
	cur.IsDeleted = true

	s.logger.LogTransactionMutation(ctx, log.OpDelete, ownerID, cur.ID, cur.Category, cur.Cost.Cents, cur.IsIncome)
	s.changed(ctx, core.EventDeleted, cur)
	return nil
}

// List returns one page of the owner's active records, newest first.
func (s *TransactionService) List(ctx context.Context, ownerID string, f core.TransactionFilter, p core.Page) (core.TransactionPage, error) {
	p = p.Normalize()
	records, total, err := s.store.ListTransactions(ctx, ownerID, f, p)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", core.WrapStore("list transactions", err))
	}
	return core.TransactionPage{
		Transactions: records,
		TotalPages:   p.TotalPages(total),
		CurrentPage:  p.Number,
		TotalCount:   total,
	}, nil
}

// Export writes every active record of the owner as CSV with a header row.
func (s *TransactionService) Export(ctx context.Context, ownerID string, w io.Writer) error {
	records, err := s.store.ActiveTransactions(ctx, ownerID, core.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("export transactions: %w", core.WrapStore("export transactions", err))
	}
	core.SortNewestFirst(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range records {
		row := []string{
			t.ID,
			t.OwnerID,
			t.Name,
			t.Category,
			t.Cost.String(),
			t.OccurredOn.UTC().Format(time.RFC3339),
			strconv.FormatBool(t.IsIncome),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	slog.InfoContext(ctx, "Transactions exported", "owner_id", ownerID, "count", len(records))
	return nil
}
