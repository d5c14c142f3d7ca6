package core

import (
	"sort"
	"time"
)

// RecentLimit is how many records the summary carries.
const RecentLimit = 5

// DefaultWindowDays is the chart window when none is requested.
const DefaultWindowDays = 30

// SeriesKind selects income or expense records for a time series.
type SeriesKind string

const (
	SeriesIncome  SeriesKind = "income"
	SeriesExpense SeriesKind = "expense"
)

func (k SeriesKind) isIncome() bool { return k == SeriesIncome }

type (
	// Summary is the balance view of an owner's active ledger.
	Summary struct {
		TotalIncome        Money         `json:"totalIncome"`
		TotalExpenses      Money         `json:"totalExpenses"`
		Balance            Balance       `json:"balance"`
		RecentTransactions []Transaction `json:"recentTransactions"`
	}

	// CategoryTotal is the expense sum of one category.
	CategoryTotal struct {
		Category string `json:"name"`
		Total    Money  `json:"total"`
	}

	// DailyTotal is the sum of one calendar day (UTC).
	DailyTotal struct {
		Date  string `json:"date"`
		Total Money  `json:"total"`
	}

	// ChartData bundles the three dashboard series.
	ChartData struct {
		ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
		ExpensesOverTime   []DailyTotal    `json:"expensesOverTime"`
		IncomeOverTime     []DailyTotal    `json:"incomeOverTime"`
	}
)

// Summarize computes totals and the most recent records. Callers pass only
// the owner's active records.
func Summarize(records []Transaction) Summary {
	var s Summary
	for _, t := range records {
		if t.IsDeleted {
			continue
		}
		if t.IsIncome {
			s.TotalIncome = s.TotalIncome.Add(t.Cost)
		} else {
			s.TotalExpenses = s.TotalExpenses.Add(t.Cost)
		}
	}
	s.Balance = Balance{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
	s.RecentTransactions = MostRecent(records, RecentLimit)
	return s
}

// MostRecent returns up to n active records, newest occurrence first.
// Records on the same instant are ordered by insertion, newest first.
func MostRecent(records []Transaction, n int) []Transaction {
	out := make([]Transaction, 0, len(records))
	for _, t := range records {
		if !t.IsDeleted {
			out = append(out, t)
		}
	}
	SortNewestFirst(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SortNewestFirst orders by OccurredOn descending, then Seq descending.
func SortNewestFirst(records []Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.OccurredOn.Equal(b.OccurredOn) {
			return a.OccurredOn.After(b.OccurredOn)
		}
		return a.Seq > b.Seq
	})
}

// BreakdownByCategory sums active expenses per category, in order of
// first appearance.
func BreakdownByCategory(records []Transaction) []CategoryTotal {
	index := map[string]int{}
	out := []CategoryTotal{}
	for _, t := range records {
		if t.IsDeleted || t.IsIncome {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryTotal{Category: t.Category})
		}
		out[i].Total = out[i].Total.Add(t.Cost)
	}
	return out
}

// DailySeries sums active records of the given kind per UTC day, for
// records on or after since. Days without activity are omitted; the result
// is ordered by date ascending.
func DailySeries(records []Transaction, kind SeriesKind, since time.Time) []DailyTotal {
	sums := map[string]Money{}
	for _, t := range records {
		if t.IsDeleted || t.IsIncome != kind.isIncome() {
			continue
		}
		if t.OccurredOn.Before(since) {
			continue
		}
		key := DayKey(t.OccurredOn)
		sums[key] = sums[key].Add(t.Cost)
	}
	out := make([]DailyTotal, 0, len(sums))
	for day, total := range sums {
		out = append(out, DailyTotal{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// WindowStart is now minus windowDays, defaulting to DefaultWindowDays.
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return now.UTC().AddDate(0, 0, -windowDays)
}
