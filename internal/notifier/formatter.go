package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SignalSentinel/internal/config"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/strategy"
)

const timestampLayout = "2006-01-02 15:04:05"

func signalEmoji(kind model.SignalKind) string {
	switch kind {
	case model.SignalStrongBuy:
		return "🟢"
	case model.SignalStrongSell:
		return "🔴"
	default:
		return "ℹ️"
	}
}

func writeBands(b *strings.Builder, bands model.Bands) {
	b.WriteString("📈 Bollinger Bands:\n")
	fmt.Fprintf(b, "   Upper: $%.2f\n", bands.Upper)
	fmt.Fprintf(b, "   Middle: $%.2f\n", bands.Middle)
	fmt.Fprintf(b, "   Lower: $%.2f\n", bands.Lower)
}

// FormatSignal formats an accepted signal alert.
func FormatSignal(n model.Notification) string {
	v := n.Verdict
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s: %s</b>\n\n", signalEmoji(v.Kind), v.Kind, html.EscapeString(v.Ticker))
	fmt.Fprintf(&b, "💰 Current Price: $%.2f\n", v.Indicators.Price)
	fmt.Fprintf(&b, "📊 RPP Score: %.2f%%\n", v.Indicators.RPP)
	writeBands(&b, v.Indicators.Bands)
	b.WriteString("\n⚡ Triggers:\n")
	for _, t := range v.Triggers {
		fmt.Fprintf(&b, "   • %s\n", html.EscapeString(t))
	}
	if n.Reason != "" {
		fmt.Fprintf(&b, "\n📝 %s\n", html.EscapeString(n.Reason))
	}
	fmt.Fprintf(&b, "\n🕐 %s UTC", n.DetectedAt.UTC().Format(timestampLayout))
	return b.String()
}

// FormatAnalysis formats an on-demand analysis. It never consults signal history.
func FormatAnalysis(a strategy.Analysis, now time.Time) string {
	v := a.Verdict
	ind := v.Indicators
	var b strings.Builder

	if v.HasSignal() {
		fmt.Fprintf(&b, "%s <b>%s - %s</b>\n\n", signalEmoji(v.Kind), html.EscapeString(v.Ticker), v.Kind)
	} else {
		fmt.Fprintf(&b, "ℹ️ <b>%s - No Signal</b>\n\n", html.EscapeString(v.Ticker))
	}
	fmt.Fprintf(&b, "💰 Current Price: $%.2f\n", ind.Price)
	fmt.Fprintf(&b, "📊 RPP Score: %.2f%%\n", ind.RPP)
	fmt.Fprintf(&b, "   Status: %s\n\n", a.RPP)
	writeBands(&b, ind.Bands)
	fmt.Fprintf(&b, "   Status: %s\n", a.Band)

	if v.HasSignal() {
		b.WriteString("\n⚡ Triggers:\n")
		for _, t := range v.Triggers {
			fmt.Fprintf(&b, "   • %s\n", html.EscapeString(t))
		}
	} else if len(a.Reasons) > 0 {
		b.WriteString("\n💡 <b>Why No Signal?</b>\n")
		for _, r := range a.Reasons {
			fmt.Fprintf(&b, "   • %s\n", html.EscapeString(r))
		}
	}
	fmt.Fprintf(&b, "\n🕐 %s UTC", now.UTC().Format(timestampLayout))
	return b.String()
}

func FormatWatchlist(entries []model.WatchlistEntry) string {
	if len(entries) == 0 {
		return "📭 Watchlist is empty. Use /add TICKER to add one."
	}
	var b strings.Builder
	b.WriteString("📊 <b>Current Watchlist</b>\n\n")
	for _, e := range entries {
		if e.Name != "" {
			fmt.Fprintf(&b, "• %s (%s)\n", html.EscapeString(e.Ticker), html.EscapeString(e.Name))
		} else {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(e.Ticker))
		}
	}
	fmt.Fprintf(&b, "\n<b>Total: %d stocks</b>", len(entries))
	return b.String()
}

func FormatSettings(s config.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Current Settings</b>\n\n")
	fmt.Fprintf(&b, "🕐 Check Interval: <b>%s</b>\n", formatInterval(s.CheckInterval))
	fmt.Fprintf(&b, "📉 Buy Threshold: <b>&lt; %g%%</b>\n", s.BuyThreshold)
	fmt.Fprintf(&b, "📈 Sell Threshold: <b>&gt; %g%%</b>\n", s.SellThreshold)
	if s.CooldownHours == 0 {
		b.WriteString("⏱️ Signal Cooldown: <b>Disabled</b>\n")
	} else {
		fmt.Fprintf(&b, "⏱️ Signal Cooldown: <b>%g hours</b>\n", s.CooldownHours)
	}
	fmt.Fprintf(&b, "💹 Price Change Alert: <b>%g%%</b>\n\n", s.PriceChangePct)
	b.WriteString("Use /set_interval, /set_buy, /set_sell, /set_cooldown or /set_price_change to modify")
	return b.String()
}

func formatInterval(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}

// FormatHistory lists signal records newest first. days is the window the records were drawn from.
func FormatHistory(records []model.SignalRecord, days int) string {
	if len(records) == 0 {
		return fmt.Sprintf("📭 No signals in the last %d days.", days)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 <b>Recent Signals (Last %d Days)</b>\n\n", days)
	for _, r := range records {
		fmt.Fprintf(&b, "%s <b>%s</b> - %s\n", signalEmoji(r.Kind), html.EscapeString(r.Ticker), r.Kind)
		fmt.Fprintf(&b, "   $%.2f | RPP: %.1f%%\n", r.Price, r.RPPScore)
		fmt.Fprintf(&b, "   %s UTC\n\n", r.CreatedAt.UTC().Format(timestampLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStartup announces the bot, the watchlist and the check interval.
func FormatStartup(entries []model.WatchlistEntry, s config.Settings) string {
	tickers := make([]string, len(entries))
	for i, e := range entries {
		tickers[i] = html.EscapeString(e.Ticker)
	}
	var b strings.Builder
	b.WriteString("🤖 <b>SignalSentinel Started</b>\n\n")
	fmt.Fprintf(&b, "Monitoring %d stocks:\n%s\n\n", len(entries), strings.Join(tickers, ", "))
	fmt.Fprintf(&b, "Check interval: %s\n", formatInterval(s.CheckInterval))
	fmt.Fprintf(&b, "Buy: RPP &lt; %g%% | Sell: RPP &gt; %g%%\n\n", s.BuyThreshold, s.SellThreshold)
	b.WriteString("Send /start for commands.")
	return b.String()
}

// FormatCheckSummary reports the outcome of an on-demand pass.
func FormatCheckSummary(total, sent, suppressed, noData int, forced bool) string {
	title := "Check complete"
	if forced {
		title = "Forced check complete"
	}
	return fmt.Sprintf("✅ <b>%s</b>\n\nTickers: %d\nSignals sent: %d\nSuppressed: %d\nNo data: %d",
		title, total, sent, suppressed, noData)
}

func FormatHelp() string {
	var b strings.Builder
	b.WriteString("🤖 <b>SignalSentinel - Admin Panel</b>\n\n")
	b.WriteString("<b>Available Commands:</b>\n")
	b.WriteString("/watchlist - View current watchlist\n")
	b.WriteString("/add TICKER [NAME] - Add stock to watchlist\n")
	b.WriteString("/remove TICKER - Remove stock from watchlist\n")
	b.WriteString("/analyze TICKER - Analyze any stock instantly\n")
	b.WriteString("/settings - View current settings\n")
	b.WriteString("/set_interval MINUTES - Set check interval\n")
	b.WriteString("/set_buy PERCENT - Set buy threshold\n")
	b.WriteString("/set_sell PERCENT - Set sell threshold\n")
	b.WriteString("/set_cooldown HOURS - Set signal cooldown (0 disables)\n")
	b.WriteString("/set_price_change PERCENT - Set price change alert\n")
	b.WriteString("/check - Run immediate check\n")
	b.WriteString("/check_force - Force check (ignore cooldown)\n")
	b.WriteString("/history - View recent signals")
	return b.String()
}
