package core

import (
	"math"
	"strings"
	"time"
)

const (
	// FallbackCategory receives the records of a deleted category.
	FallbackCategory = "Miscellaneous"

	maxNameLength     = 200
	maxCategoryLength = 100
)

// DefaultCategories is always offered to every owner, whether used or not.
var DefaultCategories = []string{
	"Food",
	"Shopping",
	"Bills",
	"Subscriptions",
	"Transportation",
	"Salary",
	"Entertainment",
	"Groceries",
	"Miscellaneous",
}

type (
	// Transaction is a single ledger record. Records are never physically
	// removed; IsDeleted marks a soft delete.
	Transaction struct {
		ID         string    `json:"id"`
		OwnerID    string    `json:"user"`
		Name       string    `json:"name"`
		Category   string    `json:"category"`
		Cost       Money     `json:"cost"`
		OccurredOn time.Time `json:"addedOn"`
		IsIncome   bool      `json:"isIncome"`
		IsDeleted  bool      `json:"isDeleted"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`

		// Seq is the store's insertion order, used to break date ties.
		Seq int64 `json:"-"`
	}

	// NewTransaction carries the caller-supplied fields of a create.
	NewTransaction struct {
		Name       string
		Category   string
		Cost       Money
		OccurredOn time.Time
		IsIncome   bool
	}

	// TransactionPatch is a partial update. A nil field keeps the stored value;
	// a non-nil field overwrites it, including an explicit false or zero.
	TransactionPatch struct {
		Name       *string
		Category   *string
		Cost       *Money
		OccurredOn *time.Time
		IsIncome   *bool
	}

	// TransactionFilter narrows a listing. Zero values mean "no constraint".
	// Start and End are inclusive.
	TransactionFilter struct {
		IsIncome *bool
		Category string
		Start    time.Time
		End      time.Time
	}

	// Page is a 1-indexed pagination request.
	Page struct {
		Number int
		Size   int
	}

	// TransactionPage is one page of a filtered listing.
	TransactionPage struct {
		Transactions []Transaction `json:"transactions"`
		TotalPages   int           `json:"totalPages"`
		CurrentPage  int           `json:"currentPage"`
		TotalCount   int           `json:"totalCount"`
	}
)

func (n NewTransaction) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	if len(n.Name) > maxNameLength {
		return NewValidationError("name", "too long (max 200 characters)")
	}
	if strings.TrimSpace(n.Category) == "" {
		return ErrEmptyCategory
	}
	if len(n.Category) > maxCategoryLength {
		return NewValidationError("category", "too long (max 100 characters)")
	}
	if err := n.Cost.Validate(); err != nil {
		return err
	}
	if n.OccurredOn.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Empty reports whether the patch carries no field at all.
func (p TransactionPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Cost == nil && p.OccurredOn == nil && p.IsIncome == nil
}

// Apply returns t with every provided field of p written over it.
// Validation happens before anything is copied, so an invalid patch
// leaves the result untouched.
func (p TransactionPatch) Apply(t Transaction) (Transaction, error) {
	next := NewTransaction{
		Name:       t.Name,
		Category:   t.Category,
		Cost:       t.Cost,
		OccurredOn: t.OccurredOn,
		IsIncome:   t.IsIncome,
	}
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		next.Category = strings.TrimSpace(*p.Category)
	}
	if p.Cost != nil {
		next.Cost = *p.Cost
	}
	if p.OccurredOn != nil {
		next.OccurredOn = p.OccurredOn.UTC()
	}
	if p.IsIncome != nil {
		next.IsIncome = *p.IsIncome
	}
	if err := next.Validate(); err != nil {
		return t, err
	}

	t.Name = next.Name
	t.Category = next.Category
	t.Cost = next.Cost
	t.OccurredOn = next.OccurredOn
	t.IsIncome = next.IsIncome
	return t, nil
}

// Matches reports whether t satisfies the filter. Soft-deleted records never
// match; ownership is checked by the caller.
func (f TransactionFilter) Matches(t Transaction) bool {
	if t.IsDeleted {
		return false
	}
	if f.IsIncome != nil && t.IsIncome != *f.IsIncome {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.Start.IsZero() && t.OccurredOn.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && t.OccurredOn.After(f.End) {
		return false
	}
	return true
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPageNumber keeps Offset within int for every page size.
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	return p
}

// Offset is the number of matching records skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(count / size).
func (p Page) TotalPages(count int) int {
	if count <= 0 || p.Size <= 0 {
		return 0
	}
	return (count + p.Size - 1) / p.Size
}
