package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/evaluator"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/observability"
	"SignalSentinel/internal/store"
	"SignalSentinel/internal/strategy"
)

const (
	historyDays  = 7
	historyLimit = 10
)

// HandleCommand processes an operator command and returns the reply.
// Messages from anyone but the configured admin are ignored with an empty reply.
func (s *Scheduler) HandleCommand(ctx context.Context, cmd notifier.Command) string {
	admin, err := s.store.GetConfig(ctx, config.KeyAdminUserID)
	if err != nil {
		observability.Error("load admin user id", "error", err)
		return ""
	}
	if cmd.UserID == "" || cmd.UserID != admin {
		observability.Debug("ignoring command from non-admin", "user_id", cmd.UserID)
		return ""
	}

	fields := strings.Fields(cmd.Text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i] // /check@SignalSentinelBot
	}
	args := fields[1:]

	switch name {
	case "/start", "/help":
		return notifier.FormatHelp()
	case "/watchlist":
		return s.cmdWatchlist(ctx)
	case "/add":
		return s.cmdAdd(ctx, args)
	case "/remove":
		return s.cmdRemove(ctx, args)
	case "/analyze":
		return s.cmdAnalyze(ctx, args)
	case "/settings":
		return s.cmdSettings(ctx)
	case "/set_interval":
		return s.cmdSetInterval(ctx, args)
	case "/set_buy":
		return s.cmdSet(ctx, args, config.KeyBuyThreshold, "/set_buy PERCENT", "✅ Buy threshold updated to <b>&lt; %s%%</b>")
	case "/set_sell":
		return s.cmdSet(ctx, args, config.KeySellThreshold, "/set_sell PERCENT", "✅ Sell threshold updated to <b>&gt; %s%%</b>")
	case "/set_cooldown":
		return s.cmdSetCooldown(ctx, args)
	case "/set_price_change":
		return s.cmdSet(ctx, args, config.KeyPriceChangePct, "/set_price_change PERCENT", "✅ Price change alert updated to <b>%s%%</b>")
	case "/check":
		return s.cmdCheck(cmd.ChatID, false)
	case "/check_force":
		return s.cmdCheck(cmd.ChatID, true)
	case "/history":
		return s.cmdHistory(ctx)
	default:
		return "Unknown command. Send /start for the list of commands."
	}
}

func (s *Scheduler) cmdWatchlist(ctx context.Context) string {
	entries, err := s.store.Watchlist(ctx)
	if err != nil {
		observability.Error("load watchlist", "error", err)
		return "❌ Could not load the watchlist"
	}
	return notifier.FormatWatchlist(entries)
}

func (s *Scheduler) cmdAdd(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /add TICKER [NAME]"
	}
	entry := model.WatchlistEntry{
		Ticker: model.NormalizeTicker(args[0]),
		Name:   strings.Join(args[1:], " "),
	}
	err := s.store.AddToWatchlist(ctx, entry)
	switch {
	case errors.Is(err, store.ErrDuplicateTicker):
		return fmt.Sprintf("❌ <b>%s</b> is already in the watchlist", html.EscapeString(entry.Ticker))
	case err != nil:
		observability.Error("add to watchlist", "ticker", entry.Ticker, "error", err)
		return "❌ Could not update the watchlist"
	}
	msg := fmt.Sprintf("✅ Added <b>%s</b> to watchlist", html.EscapeString(entry.Ticker))
	if entry.Name != "" {
		msg += fmt.Sprintf(" (%s)", html.EscapeString(entry.Name))
	}
	return msg
}

func (s *Scheduler) cmdRemove(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /remove TICKER"
	}
	ticker := model.NormalizeTicker(args[0])
	err := s.store.RemoveFromWatchlist(ctx, ticker)
	label := html.EscapeString(ticker)
	switch {
	case errors.Is(err, store.ErrTickerNotFound):
		return fmt.Sprintf("❌ <b>%s</b> not found in watchlist", label)
	case err != nil:
		observability.Error("remove from watchlist", "ticker", ticker, "error", err)
		return "❌ Could not update the watchlist"
	}
	return fmt.Sprintf("✅ Removed <b>%s</b> from watchlist", label)
}

// cmdAnalyze runs the indicators for any ticker without touching signal history.
func (s *Scheduler) cmdAnalyze(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /analyze TICKER"
	}
	ticker := model.NormalizeTicker(args[0])
	label := html.EscapeString(ticker)
	settings, err := config.LoadSettings(ctx, s.store)
	if err != nil {
		observability.Error("load settings", "error", err)
		return "❌ Could not load settings"
	}

	bars := s.bars.FetchAndCache(ctx, ticker)
	if len(bars) == 0 {
		return fmt.Sprintf("❌ No data available for <b>%s</b>", label)
	}
	th := strategy.Thresholds{BuyPct: settings.BuyThreshold, SellPct: settings.SellThreshold}
	a, err := strategy.Analyze(ticker, bars, th)
	switch {
	case errors.Is(err, calculator.ErrInsufficientHistory):
		return fmt.Sprintf("❌ Not enough history for <b>%s</b> (%d bars, need %d)", label, len(bars), calculator.MinBars)
	case errors.Is(err, calculator.ErrFlatRange):
		return fmt.Sprintf("❌ <b>%s</b> has not moved in the lookback window (price $%.2f)", label, a.Verdict.Indicators.Price)
	case err != nil:
		return fmt.Sprintf("❌ Cannot analyze <b>%s</b>: %v", label, html.EscapeString(err.Error()))
	}
	return notifier.FormatAnalysis(a, s.clock.Now())
}

func (s *Scheduler) cmdSettings(ctx context.Context) string {
	settings, err := config.LoadSettings(ctx, s.store)
	if err != nil {
		observability.Error("load settings", "error", err)
		return "❌ Could not load settings"
	}
	return notifier.FormatSettings(settings)
}

func (s *Scheduler) cmdSetInterval(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /set_interval MINUTES"
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes < 1 {
		return "❌ Please provide a valid number of minutes"
	}
	value, err := config.ValidateSetting(config.KeyCheckInterval, strconv.Itoa(minutes*60))
	if err != nil {
		return "❌ Please provide a valid number of minutes"
	}
	if err := s.store.SetConfig(ctx, config.KeyCheckInterval, value); err != nil {
		observability.Error("save setting", "key", config.KeyCheckInterval, "error", err)
		return "❌ Could not save the setting"
	}
	if err := s.Reschedule(time.Duration(minutes) * time.Minute); err != nil {
		observability.Error("reschedule", "error", err)
		return "❌ Saved, but the check loop could not be rescheduled"
	}
	return fmt.Sprintf("✅ Check interval updated to <b>%d minutes</b>", minutes)
}

func (s *Scheduler) cmdSetCooldown(ctx context.Context, args []string) string {
	reply := s.cmdSet(ctx, args, config.KeyCooldownHours,
		"/set_cooldown HOURS\n\nSet to 0 to disable cooldown (never repeat same signal)",
		"✅ Signal cooldown updated to <b>%s hours</b>")
	if strings.HasPrefix(reply, "✅") && len(args) == 1 {
		if v, _ := strconv.ParseFloat(args[0], 64); v == 0 {
			return "✅ Cooldown disabled - signals will only be sent once (until they flip)"
		}
	}
	return reply
}

// cmdSet validates and stores a single numeric setting. An invalid value leaves the previous one in place.
func (s *Scheduler) cmdSet(ctx context.Context, args []string, key, usage, success string) string {
	if len(args) != 1 {
		return "Usage: " + usage
	}
	value, err := config.ValidateSetting(key, args[0])
	if err != nil {
		return fmt.Sprintf("❌ Invalid value %s for %s", html.EscapeString(strconv.Quote(args[0])), key)
	}
	if err := s.store.SetConfig(ctx, key, value); err != nil {
		observability.Error("save setting", "key", key, "error", err)
		return "❌ Could not save the setting"
	}
	return fmt.Sprintf(success, value)
}

// cmdCheck starts an on-demand pass in the background and reports to chatID when it finishes.
func (s *Scheduler) cmdCheck(chatID string, force bool) string {
	started := s.goBackground(func() {
		report, err := s.RunPass(s.ctx, force)
		var msg string
		if err != nil {
			observability.Error("on-demand check failed", "error", err)
			msg = "❌ Check failed, see logs"
		} else {
			msg = notifier.FormatCheckSummary(len(report.Results),
				report.Count(evaluator.StatusSent),
				report.Count(evaluator.StatusSuppressed),
				report.Count(evaluator.StatusNoData),
				force)
		}
		if err := s.notifier.Deliver(s.ctx, msg, chatID); err != nil {
			observability.Error("deliver check summary", "error", err)
		}
	})
	if !started {
		return "⏹ Shutting down, check not started"
	}
	if force {
		return "🔄 Running FORCED check (ignoring cooldown)..."
	}
	return "🔄 Running check..."
}

func (s *Scheduler) cmdHistory(ctx context.Context) string {
	since := s.clock.Now().AddDate(0, 0, -historyDays)
	records, err := s.store.SignalsSince(ctx, since, historyLimit)
	if err != nil {
		observability.Error("load signal history", "error", err)
		return "❌ Could not load signal history"
	}
	return notifier.FormatHistory(records, historyDays)
}
