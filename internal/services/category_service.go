package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"paisable/internal/core"
	"paisable/internal/ports"
)

// CategoryService derives category labels from the ledger. Categories are not
// stored on their own; deleting one reassigns its records.
type CategoryService struct {
	store    ports.TransactionStore
	onChange []func(ownerID string)
}

func NewCategoryService(store ports.TransactionStore) *CategoryService {
	return &CategoryService{store: store}
}

// OnChange registers fn to run after a reassignment changed records.
func (s *CategoryService) OnChange(fn func(ownerID string)) {
	s.onChange = append(s.onChange, fn)
}

// List merges the default categories with every category the owner has used,
// deleted records included, deduplicated and sorted.
func (s *CategoryService) List(ctx context.Context, ownerID string) ([]string, error) {
	used, err := s.store.DistinctCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", core.WrapStore("distinct categories", err))
	}

	seen := make(map[string]struct{}, len(core.DefaultCategories)+len(used))
	out := make([]string, 0, len(core.DefaultCategories)+len(used))
	for _, c := range append(append([]string{}, core.DefaultCategories...), used...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Delete moves every record of the owner in name to the fallback category and
// returns how many records moved. Deleting the fallback itself moves nothing.
func (s *CategoryService) Delete(ctx context.Context, ownerID, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, core.MissingParameter("categoryToDelete")
	}
	if name == core.FallbackCategory {
		return 0, nil
	}

	n, err := s.store.ReassignCategory(ctx, ownerID, name, core.FallbackCategory)
	if err != nil {
		return 0, fmt.Errorf("delete category %q: %w", name, core.WrapStore("reassign category", err))
	}
	if n > 0 {
		for _, fn := range s.onChange {
			fn(ownerID)
		}
	}

	slog.InfoContext(ctx, "Category deleted",
		"owner_id", ownerID,
		"category", name,
		"reassigned", n)
	return n, nil
}
