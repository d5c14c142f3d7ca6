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

// NewRecurringRule carries the caller-supplied fields of a rule.
type NewRecurringRule struct {
	Name      string
	Category  string
	Cost      core.Money
	IsIncome  bool
	Frequency core.Frequency
	StartDate time.Time
}

// RecurringService manages an owner's recurring rules.
type RecurringService struct {
	store ports.RecurringStore
	now   func() time.Time
	newID func() string
}

func NewRecurringService(store ports.RecurringStore) *RecurringService {
	return &RecurringService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (s *RecurringService) Create(ctx context.Context, ownerID string, in NewRecurringRule) (core.RecurringRule, error) {
	rule := core.RecurringRule{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(in.Name),
		Category:  strings.TrimSpace(in.Category),
		Cost:      in.Cost,
		IsIncome:  in.IsIncome,
		Frequency: in.Frequency,
		StartDate: in.StartDate.UTC(),
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := rule.Reschedule(); err != nil {
		return core.RecurringRule{}, err
	}

	stored, err := s.store.CreateRule(ctx, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create recurring rule: %w", core.WrapStore("create rule", err))
	}
	slog.InfoContext(ctx, "Recurring rule created",
		"owner_id", ownerID,
		"rule_id", stored.ID,
		"frequency", stored.Frequency,
		"next_due_date", core.DayKey(stored.NextDueDate))
	return stored, nil
}

func (s *RecurringService) owned(ctx context.Context, ownerID, id string) (core.RecurringRule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %s: %w", id, core.WrapStore("get rule", err))
	}
	if rule.OwnerID != ownerID {
		return core.RecurringRule{}, core.ErrForbidden
	}
	return rule, nil
}

func (s *RecurringService) List(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rules, err := s.store.ListRules(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", core.WrapStore("list rules", err))
	}
	return rules, nil
}

// Update applies a partial update; the next due date follows any change of
// start date or frequency.
func (s *RecurringService) Update(ctx context.Context, ownerID, id string, patch core.RecurringPatch) (core.RecurringRule, error) {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if !cur.IsActive {
		return core.RecurringRule{}, core.ErrNotFound
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return core.RecurringRule{}, err
	}
	stored, err := s.store.UpdateRule(ctx, next)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule %s: %w", id, core.WrapStore("update rule", err))
	}
	return stored, nil
}

// Delete deactivates the rule; it stops producing records but stays listed.
func (s *RecurringService) Delete(ctx context.Context, ownerID, id string) error {
	cur, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !cur.IsActive {
		return nil
	}
	cur.IsActive = false
	if _, err := s.store.UpdateRule(ctx, cur); err != nil {
		return fmt.Errorf("deactivate recurring rule %s: %w", id, core.WrapStore("update rule", err))
	}
	slog.InfoContext(ctx, "Recurring rule deactivated", "owner_id", ownerID, "rule_id", id)
	return nil
}
