package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"paisable/internal/core"
)

func TestBudgetService_Report(t *testing.T) {
	ctx := context.Background()
	txs, store, _ := newTestTransactions(t)
	svc := NewBudgetService(store, store)
	svc.newID = sequentialIDs("budget")
	svc.now = fixedClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	if _, err := svc.Create(ctx, "u1", " Food ", core.MustMoney("100")); err != nil {
		t.Fatalf("Create(Food) error: %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "Bills", core.MustMoney("500")); err != nil {
		t.Fatalf("Create(Bills) error: %v", err)
	}

	mustCreate(t, txs, "u1", "groceries", "Food", "70", "2024-03-02", false)
	mustCreate(t, txs, "u1", "dinner", "Food", "40", "2024-03-20", false)
	mustCreate(t, txs, "u1", "february", "Food", "999", "2024-02-28", false)
	mustCreate(t, txs, "u1", "refund", "Food", "500", "2024-03-05", true)
	mustCreate(t, txs, "u2", "other owner", "Food", "999", "2024-03-05", false)
	gone := mustCreate(t, txs, "u1", "mistake", "Bills", "900", "2024-03-03", false)
	if err := txs.Delete(ctx, "u1", gone.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	report, err := svc.Report(ctx, "u1", time.Time{})
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("Report() len = %d, want 2", len(report))
	}
	bills, food := report[0], report[1]
	if bills.Category != "Bills" || bills.Spent.String() != "0.00" || bills.OverLimit {
		t.Errorf("Bills = %+v, want nothing spent", bills)
	}
	if food.Category != "Food" || food.Spent.String() != "110.00" || food.Remaining.String() != "-10.00" || !food.OverLimit {
		t.Errorf("Food = %+v, want 110.00 spent and 10.00 over", food)
	}
	if food.Month != "2024-03" {
		t.Errorf("Month = %q, want 2024-03", food.Month)
	}

	feb, err := svc.Report(ctx, "u1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Report(February) error: %v", err)
	}
	if feb[1].Spent.String() != "999.00" {
		t.Errorf("February Food spent = %s, want 999.00", feb[1].Spent)
	}

	empty, err := svc.Report(ctx, "u3", time.Time{})
	if err != nil || len(empty) != 0 {
		t.Errorf("Report(no budgets) = %v, %v, want empty", empty, err)
	}
}

func TestBudgetService_Validation(t *testing.T) {
	ctx := context.Background()
	_, store, _ := newTestTransactions(t)
	svc := NewBudgetService(store, store)

	tests := []struct {
		name     string
		category string
		limit    core.Money
		want     error
	}{
		{"blank category", "  ", core.MustMoney("10"), core.ErrEmptyCategory},
		{"zero limit", "Food", core.Money{}, core.ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, "u1", tt.category, tt.limit); !errors.Is(err, tt.want) {
				t.Errorf("Create() = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.Create(ctx, "u1", "Food", core.MustMoney("10")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "Food", core.MustMoney("20")); !errors.Is(err, core.ErrConflict) {
		t.Errorf("Create(duplicate) = %v, want ErrConflict", err)
	}
}

func TestBudgetService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	_, store, _ := newTestTransactions(t)
	svc := NewBudgetService(store, store)

	b, err := svc.Create(ctx, "u1", "Food", core.MustMoney("100"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	limit := core.MustMoney("150")
	got, err := svc.Update(ctx, "u1", b.ID, core.BudgetPatch{Limit: &limit})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.Limit.String() != "150.00" || got.Category != "Food" {
		t.Errorf("Update() = %+v, want Food at 150.00", got)
	}

	zero := core.Money{}
	if _, err := svc.Update(ctx, "u1", b.ID, core.BudgetPatch{Limit: &zero}); !errors.Is(err, core.ErrInvalidLimit) {
		t.Errorf("Update(zero limit) = %v, want ErrInvalidLimit", err)
	}
	if _, err := svc.Update(ctx, "u2", b.ID, core.BudgetPatch{Limit: &limit}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("Update(other owner) = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "u2", b.ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("Delete(other owner) = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "u1", b.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := svc.Delete(ctx, "u1", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Delete(twice) = %v, want ErrNotFound", err)
	}
}
