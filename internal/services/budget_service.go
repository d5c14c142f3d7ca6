package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"paisable/internal/core"
	"paisable/internal/ports"
)

// BudgetService manages per-category monthly limits and reports them
// against the owner's expenses.
type BudgetService struct {
	budgets ports.BudgetStore
	ledger  ports.TransactionStore
	now     func() time.Time
	newID   func() string
}

func NewBudgetService(budgets ports.BudgetStore, ledger ports.TransactionStore) *BudgetService {
	return &BudgetService{
		budgets: budgets,
		ledger:  ledger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Create adds a budget. An owner budgets each category at most once.
func (s *BudgetService) Create(ctx context.Context, ownerID, category string, limit core.Money) (core.Budget, error) {
	now := s.now()
	b := core.Budget{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Category:  strings.TrimSpace(category),
		Limit:     limit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	stored, err := s.budgets.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", core.WrapStore("create budget", err))
	}
	slog.InfoContext(ctx, "Budget created",
		"owner_id", ownerID,
		"budget_id", stored.ID,
		"category", stored.Category,
		"limit", stored.Limit.String())
	return stored, nil
}

func (s *BudgetService) owned(ctx context.Context, ownerID, id string) (core.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, core.WrapStore("get budget", err))
	}
	if b.OwnerID != ownerID {
		return core.Budget{}, core.ErrForbidden
	}
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, ownerID, id string, patch core.BudgetPatch) (core.Budget, error) {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return core.Budget{}, err
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return core.Budget{}, err
	}
	next.UpdatedAt = s.now()
	stored, err := s.budgets.UpdateBudget(ctx, next)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", id, core.WrapStore("update budget", err))
	}
	return stored, nil
}

func (s *BudgetService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.budgets.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, core.WrapStore("delete budget", err))
	}
	slog.InfoContext(ctx, "Budget deleted", "owner_id", ownerID, "budget_id", id)
	return nil
}

// Report lists the owner's budgets with the expenses of the month starting
// at month. A zero month means the current one.
func (s *BudgetService) Report(ctx context.Context, ownerID string, month time.Time) ([]core.BudgetStatus, error) {
	if month.IsZero() {
		month = s.now()
	}
	budgets, err := s.budgets.ListBudgets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", core.WrapStore("list budgets", err))
	}
	if len(budgets) == 0 {
		return []core.BudgetStatus{}, nil
	}
	records, err := s.ledger.ActiveTransactions(ctx, ownerID, core.MonthFilter(month))
	if err != nil {
		return nil, fmt.Errorf("load month expenses: %w", core.WrapStore("active transactions", err))
	}
	return core.BudgetReport(budgets, core.BreakdownByCategory(records), month), nil
}
