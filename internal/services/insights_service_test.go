package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"paisable/internal/core"
	"paisable/internal/storage/memory"
)

func TestInsightsService_SummaryPartition(t *testing.T) {
	ctx := context.Background()
	txs, store, _ := newTestTransactions(t)
	insights := NewInsightsService(store, WithCacheTTL(0))

	mustCreate(t, txs, "u1", "Salary", "Salary", "3000", "2024-03-01", true)
	mustCreate(t, txs, "u1", "Freelance", "Salary", "250.75", "2024-03-05", true)
	mustCreate(t, txs, "u1", "Rent", "Bills", "1200", "2024-03-02", false)
	mustCreate(t, txs, "u1", "Food", "Food", "80.10", "2024-03-03", false)
	deleted := mustCreate(t, txs, "u1", "Mistake", "Food", "5000", "2024-03-04", false)
	mustCreate(t, txs, "u2", "Other", "Food", "99", "2024-03-04", false)
	if err := txs.Delete(ctx, "u1", deleted.ID); err != nil {
		t.Fatal(err)
	}

	s, err := insights.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if s.TotalIncome.String() != "3250.75" {
		t.Errorf("TotalIncome = %s, want 3250.75", s.TotalIncome)
	}
	if s.TotalExpenses.String() != "1280.10" {
		t.Errorf("TotalExpenses = %s, want 1280.10", s.TotalExpenses)
	}
	if s.Balance.String() != "1970.65" {
		t.Errorf("Balance = %s, want 1970.65", s.Balance)
	}
	if len(s.RecentTransactions) != 4 || s.RecentTransactions[0].Name != "Freelance" {
		t.Errorf("RecentTransactions = %+v", s.RecentTransactions)
	}

	breakdown, err := insights.CategoryBreakdown(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	totals := map[string]string{}
	for _, c := range breakdown {
		totals[c.Category] = c.Total.String()
	}
	if len(totals) != 2 || totals["Bills"] != "1200.00" || totals["Food"] != "80.10" {
		t.Errorf("CategoryBreakdown() = %v", totals)
	}
}

func TestInsightsService_NegativeBalance(t *testing.T) {
	txs, store, _ := newTestTransactions(t)
	insights := NewInsightsService(store)
	mustCreate(t, txs, "u1", "Rent", "Bills", "100", "2024-03-02", false)

	s, err := insights.Summary(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Balance.Cents != -10000 {
		t.Errorf("Balance = %s, want -100.00", s.Balance)
	}
}

func TestInsightsService_ChartDataWindow(t *testing.T) {
	ctx := context.Background()
	txs, store, _ := newTestTransactions(t)
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	insights := NewInsightsService(store, WithCacheTTL(0), withClock(fixedClock(now)))

	mustCreate(t, txs, "u1", "Old", "Food", "10", "2024-02-01", false)
	mustCreate(t, txs, "u1", "A", "Food", "4", "2024-03-20", false)
	mustCreate(t, txs, "u1", "B", "Bills", "6", "2024-03-20", false)
	mustCreate(t, txs, "u1", "C", "Food", "1", "2024-03-10", false)
	mustCreate(t, txs, "u1", "Pay", "Salary", "100", "2024-03-15", true)

	data, err := insights.ChartData(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ChartData() error: %v", err)
	}

	if len(data.ExpensesByCategory) != 2 {
		t.Errorf("ExpensesByCategory = %+v, want Food and Bills", data.ExpensesByCategory)
	}
	wantExp := []core.DailyTotal{
		{Date: "2024-03-10", Total: core.Money{Cents: 100}},
		{Date: "2024-03-20", Total: core.Money{Cents: 1000}},
	}
	if len(data.ExpensesOverTime) != len(wantExp) {
		t.Fatalf("ExpensesOverTime = %+v, want %+v", data.ExpensesOverTime, wantExp)
	}
	for i := range wantExp {
		if data.ExpensesOverTime[i] != wantExp[i] {
			t.Errorf("ExpensesOverTime[%d] = %+v, want %+v", i, data.ExpensesOverTime[i], wantExp[i])
		}
	}
	if len(data.IncomeOverTime) != 1 || data.IncomeOverTime[0].Date != "2024-03-15" {
		t.Errorf("IncomeOverTime = %+v", data.IncomeOverTime)
	}

	week, err := insights.TimeSeries(ctx, "u1", core.SeriesExpense, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 0 {
		t.Errorf("TimeSeries(7 days) = %+v, want empty", week)
	}
}

func TestInsightsService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	txs, store, _ := newTestTransactions(t)
	insights := NewInsightsService(store, WithCacheTTL(time.Minute))
	txs.OnChange(insights.Invalidate)

	mustCreate(t, txs, "u1", "Pay", "Salary", "100", "2024-03-15", true)
	first, _ := insights.Summary(ctx, "u1")

	mustCreate(t, txs, "u1", "Bonus", "Salary", "50", "2024-03-16", true)
	second, _ := insights.Summary(ctx, "u1")

	if first.TotalIncome.Cents != 10000 || second.TotalIncome.Cents != 15000 {
		t.Errorf("TotalIncome = %s then %s, want 100.00 then 150.00", first.TotalIncome, second.TotalIncome)
	}
}

// countingStore counts full ledger reads.
type countingStore struct {
	*memory.Store
	reads atomic.Int64
}

func (c *countingStore) ActiveTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	c.reads.Add(1)
	return c.Store.ActiveTransactions(ctx, ownerID, f)
}

func TestInsightsService_SeesWritesFromAnotherWriter(t *testing.T) {
	ctx := context.Background()
	api, store, _ := newTestTransactions(t)
	counted := &countingStore{Store: store}
	insights := NewInsightsService(counted, WithCacheTTL(time.Hour))
	api.OnChange(insights.Invalidate)

	// a second writer on the same store, like the recurring worker, with no hook
	worker := NewTransactionService(store, nil, nil)

	mustCreate(t, api, "u1", "Pay", "Salary", "100", "2024-03-15", true)
	if _, err := insights.Summary(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := insights.Summary(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if n := counted.reads.Load(); n != 1 {
		t.Errorf("ledger reads = %d, want 1 (second summary cached)", n)
	}

	mustCreate(t, worker, "u1", "Gym", "Bills", "40", "2024-03-16", false)
	s, err := insights.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalExpenses.String() != "40.00" || s.Balance.String() != "60.00" {
		t.Errorf("Summary() = expenses %s balance %s, want 40.00 and 60.00", s.TotalExpenses, s.Balance)
	}

	charts, err := insights.ChartData(ctx, "u1", 3650)
	if err != nil {
		t.Fatal(err)
	}
	if len(charts.ExpensesByCategory) != 1 {
		t.Fatalf("ExpensesByCategory = %+v, want Bills", charts.ExpensesByCategory)
	}
	tx := mustCreate(t, worker, "u1", "Cinema", "Entertainment", "12", "2024-03-17", false)
	charts, _ = insights.ChartData(ctx, "u1", 3650)
	if len(charts.ExpensesByCategory) != 2 {
		t.Errorf("ExpensesByCategory after second writer = %+v, want 2 categories", charts.ExpensesByCategory)
	}

	if err := worker.Delete(ctx, "u1", tx.ID); err != nil {
		t.Fatal(err)
	}
	charts, _ = insights.ChartData(ctx, "u1", 3650)
	if len(charts.ExpensesByCategory) != 1 {
		t.Errorf("ExpensesByCategory after delete = %+v, want 1 category", charts.ExpensesByCategory)
	}
}
