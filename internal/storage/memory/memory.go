// Package memory is an in-process ledger backend for development and tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"paisable/internal/core"
)

type Store struct {
	mu           sync.Mutex
	seq          int64
	transactions map[string]core.Transaction
	receipts     map[string]core.Receipt
	rules        map[string]core.RecurringRule
	users        map[string]core.User
	budgets      map[string]core.Budget
	syncStatus   map[string]string
	versions     map[string]int64
}

func New() *Store {
	return &Store{
		transactions: map[string]core.Transaction{},
		receipts:     map[string]core.Receipt{},
		rules:        map[string]core.RecurringRule{},
		users:        map[string]core.User{},
		budgets:      map[string]core.Budget{},
		syncStatus:   map[string]string{},
		versions:     map[string]int64{},
	}
}

// Close is a no-op kept for parity with the sqlite backend.
func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return core.Transaction{}, core.ErrConflict
	}
	s.seq++
	t.Seq = s.seq
	s.transactions[t.ID] = t
	s.versions[t.OwnerID]++
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[t.ID]
	if !ok || cur.IsDeleted {
		return core.Transaction{}, core.ErrNotFound
	}
	cur.Name = t.Name
	cur.Category = t.Category
	cur.Cost = t.Cost
	cur.OccurredOn = t.OccurredOn
	cur.IsIncome = t.IsIncome
	cur.UpdatedAt = t.UpdatedAt
	s.transactions[t.ID] = cur
	delete(s.syncStatus, t.ID)
	s.versions[cur.OwnerID]++
	return cur, nil
}

func (s *Store) SoftDeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[id]
	if !ok {
		return core.ErrNotFound
	}
	if !cur.IsDeleted {
		cur.IsDeleted = true
		cur.UpdatedAt = time.Now().UTC()
		s.transactions[id] = cur
		delete(s.syncStatus, id)
		s.versions[cur.OwnerID]++
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string, f core.TransactionFilter, p core.Page) ([]core.Transaction, int, error) {
	s.mu.Lock()
	matched := s.activeLocked(ownerID, f)
	s.mu.Unlock()

	core.SortNewestFirst(matched)
	total := len(matched)
	p = p.Normalize()
	start := p.Offset()
	if start >= total {
		return []core.Transaction{}, total, nil
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) ActiveTransactions(_ context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.activeLocked(ownerID, f)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// activeLocked is the single place the soft-delete predicate is applied.
func (s *Store) activeLocked(ownerID string, f core.TransactionFilter) []core.Transaction {
	out := []core.Transaction{}
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) DistinctCategories(_ context.Context, ownerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range s.transactions {
		if t.OwnerID != ownerID {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ReassignCategory(_ context.Context, ownerID, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, t := range s.transactions {
		if t.OwnerID != ownerID || t.Category != from {
			continue
		}
		t.Category = to
		t.UpdatedAt = now
		s.transactions[id] = t
		delete(s.syncStatus, id)
		n++
	}
	if n > 0 {
		s.versions[ownerID]++
	}
	return n, nil
}

func (s *Store) LedgerVersion(_ context.Context, ownerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatInt(s.versions[ownerID], 10), nil
}

func (s *Store) CreateReceipt(_ context.Context, r core.Receipt) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[r.ID]; ok {
		return core.Receipt{}, core.ErrConflict
	}
	s.receipts[r.ID] = r
	return r, nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return core.Receipt{}, core.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateReceipt(_ context.Context, r core.Receipt) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[r.ID]; !ok {
		return core.Receipt{}, core.ErrNotFound
	}
	s.receipts[r.ID] = r
	return r, nil
}

func (s *Store) ListReceipts(_ context.Context, ownerID string) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Receipt{}
	for _, r := range s.receipts {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; ok {
		return core.RecurringRule{}, core.ErrConflict
	}
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringRule{}, core.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return core.RecurringRule{}, core.ErrNotFound
	}
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) ListRules(_ context.Context, ownerID string) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.RecurringRule{}
	for _, r := range s.rules {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueDate.Before(out[j].NextDueDate) })
	return out, nil
}

func (s *Store) DueRules(_ context.Context, now time.Time) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.RecurringRule{}
	for _, r := range s.rules {
		if r.IsActive && !r.NextDueDate.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueDate.Before(out[j].NextDueDate) })
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, core.ErrConflict
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	cur.DefaultCurrency = u.DefaultCurrency
	cur.IsSetupComplete = u.IsSetupComplete
	s.users[u.ID] = cur
	return cur, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; ok {
		return core.Budget{}, core.ErrConflict
	}
	for _, existing := range s.budgets {
		if existing.OwnerID == b.OwnerID && existing.Category == b.Category {
			return core.Budget{}, core.ErrConflict
		}
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	for _, existing := range s.budgets {
		if existing.ID != b.ID && existing.OwnerID == cur.OwnerID && existing.Category == b.Category {
			return core.Budget{}, core.ErrConflict
		}
	}
	cur.Category = b.Category
	cur.Limit = b.Limit
	cur.UpdatedAt = b.UpdatedAt
	s.budgets[b.ID] = cur
	return cur, nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Budget{}
	for _, b := range s.budgets {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string, version time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transactions[id]; ok && !t.UpdatedAt.Equal(version) {
		return nil
	}
	s.syncStatus[id] = "synced"
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus[id] = "error"
	return nil
}

// GetPendingSync returns up to limit transaction ids not yet mirrored, oldest change first.
func (s *Store) GetPendingSync(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []core.Transaction
	for id, t := range s.transactions {
		if _, ok := s.syncStatus[id]; !ok {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].UpdatedAt.Equal(pending[j].UpdatedAt) {
			return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
		}
		return pending[i].Seq < pending[j].Seq
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]string, len(pending))
	for i, t := range pending {
		ids[i] = t.ID
	}
	return ids, nil
}

// SyncStatus reports the last mirror outcome for id, or "pending".
func (s *Store) SyncStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.syncStatus[id]; ok {
		return st
	}
	return "pending"
}
