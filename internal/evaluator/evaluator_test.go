package evaluator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/dedup"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/observability"
)

type fakeBars map[string][]model.Bar

func (f fakeBars) FetchAndCache(_ context.Context, ticker string) []model.Bar {
	return f[ticker]
}

type memLog struct {
	mu        sync.Mutex
	records   []model.SignalRecord
	appendErr error
}

func (m *memLog) LastSignal(_ context.Context, ticker string) (*model.SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Ticker == ticker {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memLog) AppendSignal(_ context.Context, rec *model.SignalRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memLog) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// seriesEndingAt returns n-1 bars closing at 100 followed by a final bar closing at last.
func seriesEndingAt(n int, last float64) []model.Bar {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 100.0
		if i == n-1 {
			c = last
		}
		bars[i] = model.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

var settings = config.Settings{
	CheckInterval:  15 * time.Minute,
	BuyThreshold:   10,
	SellThreshold:  90,
	CooldownHours:  24,
	PriceChangePct: 5,
}

type fixture struct {
	eval    *Evaluator
	log     *memLog
	clock   *clock.Fake
	metrics *observability.Metrics
}

func newFixture(bars fakeBars) *fixture {
	f := &fixture{
		log:     &memLog{},
		clock:   clock.NewFake(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
	f.eval = New(bars, f.log, f.clock, f.metrics)
	return f
}

func TestEvaluate_Statuses(t *testing.T) {
	f := newFixture(fakeBars{
		"BUY":   seriesEndingAt(60, 80),
		"SHORT": seriesEndingAt(19, 80),
		"CALM":  append(seriesEndingAt(59, 100), model.Bar{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), High: 101, Low: 99, Close: 100.5}),
	})
	ctx := context.Background()

	tests := []struct {
		ticker string
		want   Status
	}{
		{"MISSING", StatusNoData},
		{"SHORT", StatusInsufficient},
		{"CALM", StatusNoSignal},
		{"BUY", StatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			res := f.eval.Evaluate(ctx, tt.ticker, settings, false)
			if res.Status != tt.want {
				t.Errorf("expected %q, got %q (err %v)", tt.want, res.Status, res.Err)
			}
		})
	}
}

func TestEvaluate_SendRecordsAndNotifies(t *testing.T) {
	f := newFixture(fakeBars{"NVDA": seriesEndingAt(60, 80)})

	res := f.eval.Evaluate(context.Background(), "NVDA", settings, false)
	if res.Status != StatusSent {
		t.Fatalf("expected sent, got %q (err %v)", res.Status, res.Err)
	}
	if res.Notification == nil || res.Notification.Verdict.Kind != model.SignalStrongBuy {
		t.Fatalf("expected buy notification, got %+v", res.Notification)
	}
	if res.Notification.Reason != dedup.ReasonFirst {
		t.Errorf("expected first-signal reason, got %q", res.Notification.Reason)
	}
	if !res.Notification.DetectedAt.Equal(f.clock.Now()) {
		t.Errorf("expected detection time from clock, got %s", res.Notification.DetectedAt)
	}

	last, _ := f.log.LastSignal(context.Background(), "NVDA")
	if last == nil || last.Price != 80 || last.Kind != model.SignalStrongBuy {
		t.Fatalf("expected recorded buy at 80, got %+v", last)
	}
	if got := testutil.ToFloat64(f.metrics.SignalsTotal.WithLabelValues("STRONG BUY", "sent")); got != 1 {
		t.Errorf("expected 1 sent signal metric, got %v", got)
	}
}

func TestEvaluate_RepeatSuppressedThenForced(t *testing.T) {
	f := newFixture(fakeBars{"NVDA": seriesEndingAt(60, 80)})
	ctx := context.Background()

	f.eval.Evaluate(ctx, "NVDA", settings, false)
	res := f.eval.Evaluate(ctx, "NVDA", settings, false)
	if res.Status != StatusSuppressed || res.Notification != nil {
		t.Fatalf("expected suppression, got %q", res.Status)
	}
	if f.log.len() != 1 {
		t.Errorf("suppressed signals must not be recorded, got %d records", f.log.len())
	}

	res = f.eval.Evaluate(ctx, "NVDA", settings, true)
	if res.Status != StatusSent || res.Decision.Reason != dedup.ReasonForced {
		t.Fatalf("expected forced send, got %q / %q", res.Status, res.Decision.Reason)
	}
	if f.log.len() != 2 {
		t.Errorf("expected 2 records, got %d", f.log.len())
	}
}

func TestEvaluate_RecordFailure(t *testing.T) {
	f := newFixture(fakeBars{"KO": seriesEndingAt(60, 80)})
	f.log.appendErr = errors.New("disk I/O error")

	res := f.eval.Evaluate(context.Background(), "KO", settings, false)
	if res.Status != StatusError || res.Notification != nil {
		t.Errorf("expected error without notification, got %q", res.Status)
	}
}

func TestEvaluate_ConcurrentSameTickerSendsOnce(t *testing.T) {
	f := newFixture(fakeBars{"AAPL": seriesEndingAt(60, 80)})

	const workers = 8
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.eval.Evaluate(context.Background(), "AAPL", settings, false)
		}(i)
	}
	wg.Wait()

	sent := 0
	for _, r := range results {
		if r.Status == StatusSent {
			sent++
		}
	}
	if sent != 1 {
		t.Errorf("expected exactly one send, got %d", sent)
	}
	if f.log.len() != 1 {
		t.Errorf("expected one record, got %d", f.log.len())
	}
}

func TestRunPass(t *testing.T) {
	f := newFixture(fakeBars{
		"NVDA": seriesEndingAt(60, 80),
		"KO":   seriesEndingAt(60, 120),
	})
	entries := []model.WatchlistEntry{{Ticker: "NVDA"}, {Ticker: "GONE"}, {Ticker: "KO"}}

	report := f.eval.RunPass(context.Background(), entries, settings, false)
	if report.ID == "" {
		t.Error("expected a pass id")
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if report.Count(StatusSent) != 2 || report.Count(StatusNoData) != 1 {
		t.Errorf("unexpected counts: sent=%d no_data=%d", report.Count(StatusSent), report.Count(StatusNoData))
	}
	if len(report.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(report.Notifications))
	}
	if report.Notifications[1].Verdict.Kind != model.SignalStrongSell {
		t.Errorf("expected KO sell, got %q", report.Notifications[1].Verdict.Kind)
	}
	if got := testutil.ToFloat64(f.metrics.PassesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 pass metric, got %v", got)
	}
}

func TestRunPass_Cancelled(t *testing.T) {
	f := newFixture(fakeBars{"NVDA": seriesEndingAt(60, 80)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.eval.RunPass(ctx, []model.WatchlistEntry{{Ticker: "NVDA"}}, settings, false)
	if len(report.Results) != 0 {
		t.Errorf("expected no results after cancellation, got %d", len(report.Results))
	}
}
