package core

import (
	"strings"
	"time"
)

// Frequency is the cadence of a recurring rule.
type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Monthly  Frequency = "monthly"
	Annually Frequency = "annually"
)

// ParseFrequency accepts exactly the four recognized literals.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.TrimSpace(s))
	if !f.Valid() {
		return "", ErrUnknownFrequency
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Annually:
		return true
	default:
		return false
	}
}

// Advance moves t forward by one period. Month and year steps use
// time.AddDate, which normalizes overflow: Jan 31 + 1 month is Mar 2 in a
// leap year (Mar 3 otherwise) and Feb 29 + 1 year is Mar 1.
func (f Frequency) Advance(t time.Time) (time.Time, error) {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1), nil
	case Weekly:
		return t.AddDate(0, 0, 7), nil
	case Monthly:
		return t.AddDate(0, 1, 0), nil
	case Annually:
		return t.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, ErrUnknownFrequency
	}
}

// NextDueDate is the first occurrence after startDate.
func NextDueDate(startDate string, frequency string) (time.Time, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return time.Time{}, err
	}
	f, err := ParseFrequency(frequency)
	if err != nil {
		return time.Time{}, err
	}
	return f.Advance(start)
}

// RecurringRule is a template projected forward on a fixed cadence.
// NextDueDate is derived from StartDate and Frequency and recomputed
// whenever either changes.
type RecurringRule struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Cost        Money     `json:"cost"`
	IsIncome    bool      `json:"isIncome"`
	Frequency   Frequency `json:"frequency"`
	StartDate   time.Time `json:"startDate"`
	NextDueDate time.Time `json:"nextDueDate"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RecurringPatch is a partial update of a rule; nil keeps the stored value.
type RecurringPatch struct {
	Name      *string
	Category  *string
	Cost      *Money
	IsIncome  *bool
	Frequency *Frequency
	StartDate *time.Time
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := r.Cost.Validate(); err != nil {
		return err
	}
	if !r.Frequency.Valid() {
		return ErrUnknownFrequency
	}
	if r.StartDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Reschedule sets NextDueDate to one period after StartDate.
func (r *RecurringRule) Reschedule() error {
	next, err := r.Frequency.Advance(r.StartDate)
	if err != nil {
		return err
	}
	r.NextDueDate = next
	return nil
}

// Apply writes the provided fields over r. The due date is recomputed only
// when the anchor or the cadence changed.
func (p RecurringPatch) Apply(r RecurringRule) (RecurringRule, error) {
	next := r
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		next.Category = strings.TrimSpace(*p.Category)
	}
	if p.Cost != nil {
		next.Cost = *p.Cost
	}
	if p.IsIncome != nil {
		next.IsIncome = *p.IsIncome
	}
	if p.Frequency != nil {
		next.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		next.StartDate = p.StartDate.UTC()
	}
	if err := next.Validate(); err != nil {
		return r, err
	}
	if next.Frequency != r.Frequency || !next.StartDate.Equal(r.StartDate) {
		if err := next.Reschedule(); err != nil {
			return r, err
		}
	}
	return next, nil
}
