package core

import (
	"regexp"
	"strings"
	"time"
)

// MonthLayout is the YYYY-MM format budgets are reported by.
const MonthLayout = "2006-01"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var (
	ErrInvalidLimit    = NewValidationError("limit", "must be greater than zero")
	ErrInvalidMonth    = NewValidationError("month", "must be formatted as YYYY-MM")
	ErrInvalidCurrency = NewValidationError("defaultCurrency", "must be a three-letter currency code")
)

type (
	// Budget caps the monthly spending of one category. An owner has at
	// most one budget per category.
	Budget struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"user"`
		Category  string    `json:"category"`
		Limit     Money     `json:"limit"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// BudgetPatch is a partial budget update; nil fields are kept.
	BudgetPatch struct {
		Category *string `json:"category"`
		Limit    *Money  `json:"limit"`
	}

	// BudgetStatus compares a budget with the expenses of one month.
	BudgetStatus struct {
		Budget
		Month     string  `json:"month"`
		Spent     Money   `json:"spent"`
		Remaining Balance `json:"remaining"`
		OverLimit bool    `json:"overLimit"`
	}
)

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Limit.Validate(); err != nil || b.Limit.Cents == 0 {
		return ErrInvalidLimit
	}
	return nil
}

func (p BudgetPatch) Apply(b Budget) (Budget, error) {
	if p.Category != nil {
		b.Category = strings.TrimSpace(*p.Category)
	}
	if p.Limit != nil {
		b.Limit = *p.Limit
	}
	return b, b.Validate()
}

// ParseMonth reads a YYYY-MM month and returns its first instant in UTC.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return t.UTC(), nil
}

// MonthStart truncates t to the first instant of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthFilter selects the expenses occurring in the month starting at start.
func MonthFilter(start time.Time) TransactionFilter {
	expense := false
	start = MonthStart(start)
	return TransactionFilter{
		IsIncome: &expense,
		Start:    start,
		End:      start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// BudgetReport pairs every budget with the month's spend of its category.
// spend is the category breakdown of the month's expenses.
func BudgetReport(budgets []Budget, spend []CategoryTotal, month time.Time) []BudgetStatus {
	byCategory := make(map[string]Money, len(spend))
	for _, c := range spend {
		byCategory[c.Category] = c.Total
	}
	key := MonthStart(month).Format(MonthLayout)
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := byCategory[b.Category]
		out = append(out, BudgetStatus{
			Budget:    b,
			Month:     key,
			Spent:     spent,
			Remaining: Balance{Cents: b.Limit.Cents - spent.Cents},
			OverLimit: spent.Cents > b.Limit.Cents,
		})
	}
	return out
}

// NormalizeCurrency uppercases a currency code and checks its shape.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", NewValidationError("defaultCurrency", "is required")
	}
	if !currencyCode.MatchString(code) {
		return "", ErrInvalidCurrency
	}
	return code, nil
}
