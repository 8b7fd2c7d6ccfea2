package collector

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"SignalSentinel/internal/breaker"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/observability"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Price float64
	Bars  []model.Bar
	Err   error
	Now   func() time.Time
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchDailyBars(_ context.Context, _ string, days int) ([]model.Bar, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return generateMockBars(m.Price, days, now()), nil
}

func generateMockBars(basePrice float64, count int, end time.Time) []model.Bar {
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Date:   model.TruncateDay(end.AddDate(0, 0, -(count - 1 - i))),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// GuardedProvider wraps a Provider with a circuit breaker and request metrics.
type GuardedProvider struct {
	inner   Provider
	cb      *gobreaker.CircuitBreaker[[]model.Bar]
	metrics *observability.Metrics
}

// NewGuardedProvider wraps p with a breaker named after the provider.
// Only transport and upstream failures trip it; an empty answer for one ticker never blocks the others.
func NewGuardedProvider(p Provider, cfg breaker.Config, metrics *observability.Metrics) *GuardedProvider {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = isProviderSuccess
	}
	return &GuardedProvider{
		inner:   p,
		cb:      breaker.New[[]model.Bar](p.Name(), cfg, metrics),
		metrics: metrics,
	}
}

func (g *GuardedProvider) Name() string { return g.inner.Name() }

func (g *GuardedProvider) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	bars, err := g.cb.Execute(func() ([]model.Bar, error) {
		return g.inner.FetchDailyBars(ctx, ticker, days)
	})
	g.metrics.RecordProviderRequest(g.inner.Name(), time.Since(start), err)
	if err != nil {
		return nil, breaker.Wrap(g.inner.Name(), err)
	}
	return bars, nil
}

func isProviderSuccess(err error) bool {
	return errors.Is(err, ErrNoData) || breaker.IgnoreCancellation(err)
}
