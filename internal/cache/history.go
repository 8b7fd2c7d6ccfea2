// Package cache keeps daily bars in the store and decides when they must be refreshed from a provider.
package cache

import (
	"context"
	"fmt"
	"time"

	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/observability"
)

const (
	// FetchWindowDays is how much history is requested from the provider on refresh.
	FetchWindowDays = 180
	// DefaultLookbackDays bounds cached reads.
	DefaultLookbackDays = 180
)

// BarStore is the persistence the cache needs.
type BarStore interface {
	LatestBarDate(ctx context.Context, ticker string) (time.Time, bool, error)
	BarsSince(ctx context.Context, ticker string, since time.Time) ([]model.Bar, error)
	UpsertBars(ctx context.Context, ticker string, bars []model.Bar) error
}

// HistoryCache serves daily bars from the store and refreshes them from the provider once a day.
type HistoryCache struct {
	store    BarStore
	provider collector.Provider
	clock    clock.Clock
	metrics  *observability.Metrics
}

func NewHistoryCache(store BarStore, provider collector.Provider, clk clock.Clock, metrics *observability.Metrics) *HistoryCache {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &HistoryCache{store: store, provider: provider, clock: clk, metrics: metrics}
}

// IsStale reports whether the ticker has no cached bars or its newest bar is at least one calendar day old.
func (c *HistoryCache) IsStale(ctx context.Context, ticker string) (bool, error) {
	last, ok, err := c.store.LatestBarDate(ctx, ticker)
	if err != nil {
		return true, fmt.Errorf("latest bar date %s: %w", ticker, err)
	}
	if !ok {
		return true, nil
	}
	return daysBetween(model.TruncateDay(last), model.TruncateDay(c.clock.Now())) >= 1, nil
}

// Get returns cached bars dated within lookbackDays of now, ascending. It returns nil when nothing matches.
func (c *HistoryCache) Get(ctx context.Context, ticker string, lookbackDays int) ([]model.Bar, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	since := model.TruncateDay(c.clock.Now()).AddDate(0, 0, -lookbackDays)
	bars, err := c.store.BarsSince(ctx, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("cached bars %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, nil
	}
	return bars, nil
}

// Merge upserts bars keyed by (ticker, date). Bars outside the merged range are left alone.
func (c *HistoryCache) Merge(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if err := c.store.UpsertBars(ctx, ticker, bars); err != nil {
		return fmt.Errorf("merge bars %s: %w", ticker, err)
	}
	return nil
}

// FetchAndCache returns fresh cached bars, or refreshes them from the provider.
// Provider failures fall back to whatever the cache holds, possibly stale, possibly nil. It never returns an error.
func (c *HistoryCache) FetchAndCache(ctx context.Context, ticker string) []model.Bar {
	log := observability.WithTicker(ticker)

	stale, err := c.IsStale(ctx, ticker)
	if err != nil {
		log.Warn("staleness check failed, refreshing", "error", err)
	}
	if !stale {
		bars, err := c.Get(ctx, ticker, DefaultLookbackDays)
		if err != nil {
			log.Warn("read cache failed", "error", err)
		}
		if bars != nil {
			c.metrics.RecordCacheResult(observability.CacheFresh)
			return bars
		}
	}

	bars, err := c.provider.FetchDailyBars(ctx, ticker, FetchWindowDays)
	if err == nil && len(bars) > 0 {
		if err := c.Merge(ctx, ticker, bars); err != nil {
			log.Error("cache merge failed", "error", err)
		}
		c.metrics.RecordCacheResult(observability.CacheFetched)
		return bars
	}
	if err != nil {
		log.Warn("provider fetch failed, using cache", "provider", c.provider.Name(), "error", err)
	} else {
		log.Warn("provider returned no bars, using cache", "provider", c.provider.Name())
	}

	cached, gerr := c.Get(ctx, ticker, DefaultLookbackDays)
	if gerr != nil {
		log.Error("cache fallback failed", "error", gerr)
	}
	if cached == nil {
		c.metrics.RecordCacheResult(observability.CacheMiss)
		return nil
	}
	c.metrics.RecordCacheResult(observability.CacheFallback)
	return cached
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
