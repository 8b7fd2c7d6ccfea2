package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/evaluator"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/observability"
)

// DefaultRetryDelay is the back-off after a failed pass.
const DefaultRetryDelay = 60 * time.Second

// Store is the persistence used by the loop and the operator commands.
type Store interface {
	config.SettingsReader
	SetConfig(ctx context.Context, key, value string) error
	Watchlist(ctx context.Context) ([]model.WatchlistEntry, error)
	AddToWatchlist(ctx context.Context, entry model.WatchlistEntry) error
	RemoveFromWatchlist(ctx context.Context, ticker string) error
	SignalsSince(ctx context.Context, since time.Time, limit int) ([]model.SignalRecord, error)
}

// Messenger delivers formatted text to a chat.
type Messenger interface {
	Deliver(ctx context.Context, text, chatID string) error
}

// Scheduler drives periodic evaluation passes and serves operator commands.
type Scheduler struct {
	Cron       *cron.Cron
	RetryDelay time.Duration

	store    Store
	eval     *evaluator.Evaluator
	bars     evaluator.BarSource
	notifier Messenger
	chatID   string
	clock    clock.Clock
	ctx      context.Context

	job      cron.Job
	mu       sync.Mutex
	entryID  cron.EntryID
	interval time.Duration
	inflight sync.WaitGroup
	stopped  bool
}

// NewScheduler creates a Scheduler. Alerts go to chatID; bars feeds /analyze.
func NewScheduler(ctx context.Context, store Store, eval *evaluator.Evaluator, bars evaluator.BarSource, n Messenger, chatID string, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	s := &Scheduler{
		Cron:       cron.New(cron.WithLogger(logger)),
		RetryDelay: DefaultRetryDelay,
		store:      store,
		eval:       eval,
		bars:       bars,
		notifier:   n,
		chatID:     chatID,
		clock:      clk,
		ctx:        ctx,
	}
	// one wrapped job across reschedules, so a tick never overlaps the previous one
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.tick))
	return s
}

// Start schedules the loop at the stored interval, starts cron and kicks off an immediate pass.
func (s *Scheduler) Start() error {
	settings, err := config.LoadSettings(s.ctx, s.store)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := s.Reschedule(settings.CheckInterval); err != nil {
		return err
	}
	s.Cron.Start()
	observability.Info("scheduler started", "interval", settings.CheckInterval)

	s.goBackground(s.job.Run)
	return nil
}

// Stop stops cron and waits for running jobs and background checks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	s.inflight.Wait()
	observability.Info("scheduler stopped")
}

// goBackground runs fn tracked by Stop. It reports false once the scheduler is stopping.
func (s *Scheduler) goBackground(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ctx.Err() != nil {
		return false
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
	return true
}

// Reschedule replaces the periodic entry. A pass already running is not interrupted.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if interval < config.MinCheckIntervalSec*time.Second {
		return fmt.Errorf("interval %s: %w", interval, config.ErrInvalidSetting)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 && interval == s.interval {
		return nil
	}
	id, err := s.Cron.AddJob(fmt.Sprintf("@every %s", interval), s.job)
	if err != nil {
		return fmt.Errorf("schedule check: %w", err)
	}
	if s.entryID != 0 {
		s.Cron.Remove(s.entryID)
	}
	s.entryID, s.interval = id, interval
	observability.Info("check interval scheduled", "interval", interval)
	return nil
}

// Interval returns the currently scheduled interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) tick() {
	if _, err := s.RunPass(s.ctx, false); err != nil {
		observability.Error("evaluation pass failed, backing off", "error", err, "retry_in", s.RetryDelay)
		select {
		case <-s.ctx.Done():
		case <-time.After(s.RetryDelay):
		}
	}
}

// RunPass reads settings and the watchlist fresh, evaluates every ticker and delivers accepted signals.
// Delivery failures are logged and do not stop the pass.
func (s *Scheduler) RunPass(ctx context.Context, force bool) (evaluator.PassReport, error) {
	settings, err := config.LoadSettings(ctx, s.store)
	if err != nil {
		return evaluator.PassReport{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.CheckInterval != s.Interval() {
		if err := s.Reschedule(settings.CheckInterval); err != nil {
			observability.Warn("reschedule failed", "error", err)
		}
	}

	entries, err := s.store.Watchlist(ctx)
	if err != nil {
		return evaluator.PassReport{}, fmt.Errorf("load watchlist: %w", err)
	}

	report := s.eval.RunPass(ctx, entries, settings, force)
	for _, n := range report.Notifications {
		if err := s.notifier.Deliver(ctx, notifier.FormatSignal(n), s.chatID); err != nil {
			observability.WithPass(report.ID).Error("deliver signal failed",
				"ticker", n.Verdict.Ticker, "error", err)
		}
	}
	return report, nil
}

// Announce sends the startup message.
func (s *Scheduler) Announce(ctx context.Context) error {
	settings, err := config.LoadSettings(ctx, s.store)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	entries, err := s.store.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	return s.notifier.Deliver(ctx, notifier.FormatStartup(entries, settings), s.chatID)
}
