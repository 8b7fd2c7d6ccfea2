// Package evaluator runs the per-ticker pipeline: cached bars, classification, dedup, history append.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/dedup"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/observability"
	"SignalSentinel/internal/strategy"
)

// Status is the outcome of evaluating one ticker.
type Status string

const (
	StatusNoData       Status = "no data"
	StatusInsufficient Status = "insufficient history"
	StatusUndefined    Status = "indicators undefined"
	StatusNoSignal     Status = "no signal"
	StatusSent         Status = "sent"
	StatusSuppressed   Status = "suppressed"
	StatusError        Status = "error"
)

// BarSource supplies daily bars for a ticker, nil when none are available.
type BarSource interface {
	FetchAndCache(ctx context.Context, ticker string) []model.Bar
}

// SignalLog is the append-only signal history.
type SignalLog interface {
	dedup.HistoryReader
	AppendSignal(ctx context.Context, rec *model.SignalRecord) error
}

// Result reports what happened to one ticker.
type Result struct {
	Ticker       string
	Status       Status
	Verdict      model.SignalVerdict
	Decision     dedup.Decision
	Notification *model.Notification
	Err          error
}

// PassReport summarizes one pass over the watchlist.
type PassReport struct {
	ID            string
	Forced        bool
	Results       []Result
	Notifications []model.Notification
	Duration      time.Duration
}

// Count returns the number of results with status s.
func (r PassReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Evaluator serializes work per ticker so a forced check and a periodic pass never race on the same history row.
type Evaluator struct {
	bars    BarSource
	history SignalLog
	policy  *dedup.Policy
	clock   clock.Clock
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(bars BarSource, history SignalLog, clk clock.Clock, metrics *observability.Metrics) *Evaluator {
	if clk == nil {
		clk = clock.Real{}
	}
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &Evaluator{
		bars:    bars,
		history: history,
		policy:  dedup.NewPolicy(history, clk),
		clock:   clk,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (e *Evaluator) lock(ticker string) func() {
	e.mu.Lock()
	l, ok := e.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		e.locks[ticker] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Evaluate runs the pipeline for one ticker with the given settings snapshot.
// An accepted signal is appended to the history and returned as a Notification; delivery is the caller's job.
func (e *Evaluator) Evaluate(ctx context.Context, ticker string, settings config.Settings, force bool) Result {
	unlock := e.lock(ticker)
	defer unlock()

	res := Result{Ticker: ticker}
	log := observability.WithTicker(ticker)

	bars := e.bars.FetchAndCache(ctx, ticker)
	if len(bars) == 0 {
		res.Status = StatusNoData
		log.Warn("no data available")
		return res
	}

	th := strategy.Thresholds{BuyPct: settings.BuyThreshold, SellPct: settings.SellThreshold}
	verdict, err := strategy.Classify(ticker, bars, th)
	res.Verdict = verdict
	if err != nil {
		res.Err = err
		if errors.Is(err, calculator.ErrInsufficientHistory) {
			res.Status = StatusInsufficient
		} else {
			res.Status = StatusUndefined
		}
		log.Info("cannot classify", "bars", len(bars), "error", err)
		return res
	}
	if !verdict.HasSignal() {
		res.Status = StatusNoSignal
		log.Debug("no signal", "price", verdict.Indicators.Price, "rpp", verdict.Indicators.RPP)
		return res
	}

	params := dedup.Params{CooldownHours: settings.CooldownHours, PriceChangePct: settings.PriceChangePct}
	price := verdict.Indicators.Price
	decision, err := e.policy.ShouldSend(ctx, ticker, verdict.Kind, price, force, params)
	if err != nil {
		res.Status, res.Err = StatusError, err
		log.Error("dedup check failed", "error", err)
		return res
	}
	res.Decision = decision

	if !decision.Send {
		res.Status = StatusSuppressed
		e.metrics.RecordSignal(string(verdict.Kind), string(StatusSuppressed))
		log.Info("signal suppressed", "signal", verdict.Kind, "reason", decision.Reason)
		return res
	}

	now := e.clock.Now()
	rec := &model.SignalRecord{
		Ticker:    ticker,
		Kind:      verdict.Kind,
		Price:     price,
		RPPScore:  verdict.Indicators.RPP,
		CreatedAt: now,
	}
	if err := e.history.AppendSignal(ctx, rec); err != nil {
		res.Status, res.Err = StatusError, fmt.Errorf("record signal: %w", err)
		log.Error("record signal failed", "error", err)
		return res
	}

	res.Status = StatusSent
	res.Notification = &model.Notification{Verdict: verdict, Reason: decision.Reason, DetectedAt: now}
	e.metrics.RecordSignal(string(verdict.Kind), string(StatusSent))
	log.Info("signal accepted", "signal", verdict.Kind, "price", price, "reason", decision.Reason)
	return res
}

// RunPass evaluates every entry in order. Cancellation stops the pass between tickers.
func (e *Evaluator) RunPass(ctx context.Context, entries []model.WatchlistEntry, settings config.Settings, force bool) PassReport {
	start := time.Now()
	report := PassReport{ID: uuid.NewString(), Forced: force}
	log := observability.WithPass(report.ID)
	log.Info("evaluation pass started", "tickers", len(entries), "forced", force)

	status := "ok"
	for _, entry := range entries {
		if ctx.Err() != nil {
			status = "cancelled"
			break
		}
		res := e.Evaluate(ctx, entry.Ticker, settings, force)
		report.Results = append(report.Results, res)
		if res.Notification != nil {
			report.Notifications = append(report.Notifications, *res.Notification)
		}
	}

	report.Duration = time.Since(start)
	e.metrics.RecordPass(status, force, report.Duration)
	log.Info("evaluation pass finished",
		"status", status,
		"sent", report.Count(StatusSent),
		"suppressed", report.Count(StatusSuppressed),
		"no_data", report.Count(StatusNoData),
		"duration", report.Duration)
	return report
}
