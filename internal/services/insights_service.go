package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"paisable/internal/cache"
	"paisable/internal/core"
	"paisable/internal/ports"
)

const (
	defaultInsightsCacheSize = 1000
	defaultInsightsCacheTTL  = 5 * time.Minute
)

// InsightsService computes summaries, breakdowns and time series over an
// owner's active records. Results are cached per owner and tagged with the
// owner's ledger version, so writes from other processes sharing the store
// are seen on the next read.
type InsightsService struct {
	store      ports.TransactionStore
	summaries  *cache.LRUCache[versioned[core.Summary]]
	charts     *cache.LRUCache[versioned[core.ChartData]]
	windowDays int
	now        func() time.Time
}

// versioned is a cached view and the ledger version it was computed from.
type versioned[T any] struct {
	version string
	value   T
}

type InsightsOption func(*InsightsService)

// WithCacheTTL sets how long a computed view stays cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) InsightsOption {
	return func(s *InsightsService) {
		if ttl <= 0 {
			s.summaries, s.charts = nil, nil
			return
		}
		s.summaries = cache.NewLRUCache[versioned[core.Summary]](defaultInsightsCacheSize, ttl)
		s.charts = cache.NewLRUCache[versioned[core.ChartData]](defaultInsightsCacheSize, ttl)
	}
}

// WithWindowDays sets the default chart window.
func WithWindowDays(days int) InsightsOption {
	return func(s *InsightsService) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

func withClock(now func() time.Time) InsightsOption {
	return func(s *InsightsService) { s.now = now }
}

func NewInsightsService(store ports.TransactionStore, opts ...InsightsOption) *InsightsService {
	s := &InsightsService{
		store:      store,
		summaries:  cache.NewLRUCache[versioned[core.Summary]](defaultInsightsCacheSize, defaultInsightsCacheTTL),
		charts:     cache.NewLRUCache[versioned[core.ChartData]](defaultInsightsCacheSize, defaultInsightsCacheTTL),
		windowDays: core.DefaultWindowDays,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Caches returns the caches for registration with a cleanup manager.
func (s *InsightsService) Caches() []cache.Cleaner {
	if s.summaries == nil {
		return nil
	}
	return []cache.Cleaner{s.summaries, s.charts}
}

func ownerPrefix(ownerID string) string { return ownerID + "|" }

// Invalidate drops every cached view of the owner.
func (s *InsightsService) Invalidate(ownerID string) {
	if s.summaries == nil {
		return
	}
	n := s.summaries.DeletePrefix(ownerPrefix(ownerID)) + s.charts.DeletePrefix(ownerPrefix(ownerID))
	if n > 0 {
		slog.Debug("Insights cache invalidated", "owner_id", ownerID, "entries", n)
	}
}

// version reads the owner's ledger version; it is only needed when caching.
func (s *InsightsService) version(ctx context.Context, ownerID string) (string, error) {
	if s.summaries == nil {
		return "", nil
	}
	v, err := s.store.LedgerVersion(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("ledger version: %w", core.WrapStore("ledger version", err))
	}
	return v, nil
}

func (s *InsightsService) active(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	records, err := s.store.ActiveTransactions(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("load active transactions: %w", core.WrapStore("active transactions", err))
	}
	return records, nil
}

// Summary returns totals, balance and the five most recent records.
func (s *InsightsService) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	key := ownerPrefix(ownerID) + "summary"
	version, err := s.version(ctx, ownerID)
	if err != nil {
		return core.Summary{}, err
	}
	if s.summaries != nil {
		if v, ok := s.summaries.Get(key); ok && v.version == version {
			return v.value, nil
		}
	}
	records, err := s.active(ctx, ownerID, core.TransactionFilter{})
	if err != nil {
		return core.Summary{}, err
	}
	summary := core.Summarize(records)
	if s.summaries != nil {
		s.summaries.Set(key, versioned[core.Summary]{version: version, value: summary})
	}
	return summary, nil
}

// CategoryBreakdown sums the owner's active expenses per category.
func (s *InsightsService) CategoryBreakdown(ctx context.Context, ownerID string) ([]core.CategoryTotal, error) {
	expense := false
	records, err := s.active(ctx, ownerID, core.TransactionFilter{IsIncome: &expense})
	if err != nil {
		return nil, err
	}
	return core.BreakdownByCategory(records), nil
}

// TimeSeries sums the owner's active records of kind per day over the last
// windowDays days; zero or negative uses the default window.
func (s *InsightsService) TimeSeries(ctx context.Context, ownerID string, kind core.SeriesKind, windowDays int) ([]core.DailyTotal, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	since := core.WindowStart(s.now(), windowDays)
	isIncome := kind == core.SeriesIncome
	records, err := s.active(ctx, ownerID, core.TransactionFilter{IsIncome: &isIncome, Start: since})
	if err != nil {
		return nil, err
	}
	return core.DailySeries(records, kind, since), nil
}

// ChartData computes the three dashboard series concurrently.
func (s *InsightsService) ChartData(ctx context.Context, ownerID string, windowDays int) (core.ChartData, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	key := ownerPrefix(ownerID) + "charts|" + strconv.Itoa(windowDays)
	version, err := s.version(ctx, ownerID)
	if err != nil {
		return core.ChartData{}, err
	}
	if s.charts != nil {
		if v, ok := s.charts.Get(key); ok && v.version == version {
			return v.value, nil
		}
	}

	var data core.ChartData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.CategoryBreakdown(gctx, ownerID)
		data.ExpensesByCategory = v
		return err
	})
	g.Go(func() error {
		v, err := s.TimeSeries(gctx, ownerID, core.SeriesExpense, windowDays)
		data.ExpensesOverTime = v
		return err
	})
	g.Go(func() error {
		v, err := s.TimeSeries(gctx, ownerID, core.SeriesIncome, windowDays)
		data.IncomeOverTime = v
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ChartData{}, fmt.Errorf("chart data: %w", err)
	}

	if s.charts != nil {
		s.charts.Set(key, versioned[core.ChartData]{version: version, value: data})
	}
	return data, nil
}
