package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"SignalSentinel/internal/breaker"
	"SignalSentinel/internal/cache"
	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/evaluator"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/observability"
	"SignalSentinel/internal/scheduler"
	"SignalSentinel/internal/store"
)

var defaultWatchlist = []model.WatchlistEntry{
	{Ticker: "NVDA", Name: "NVIDIA"},
	{Ticker: "GOOGL", Name: "Alphabet"},
	{Ticker: "ASML", Name: "ASML Holding"},
	{Ticker: "AAPL", Name: "Apple"},
	{Ticker: "AMZN", Name: "Amazon"},
	{Ticker: "ADS.DE", Name: "Adidas"},
	{Ticker: "V", Name: "Visa"},
	{Ticker: "KO", Name: "Coca-Cola"},
}

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		observability.Fatal("load config", "error", err)
	}
	observability.InitLogger(cfg.Log.Format == "json", cfg.LogLevel())
	if err := cfg.Validate(); err != nil {
		observability.Fatal("config validation", "error", err)
	}
	observability.Info("SignalSentinel starting", "provider", cfg.DataSource.Provider)

	metrics := observability.InitMetrics()

	// Store
	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			observability.Fatal("create data dir", "error", err)
		}
	}
	st, err := store.Open(cfg.Database.SQLitePath)
	if err != nil {
		observability.Fatal("open store", "error", err)
	}
	defer st.Close()

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := st.Seed(ctx, config.DefaultSettings(cfg.Admin.UserID), defaultWatchlist); err != nil {
		observability.Fatal("seed store", "error", err)
	}

	// Market data
	var provider collector.Provider
	switch cfg.DataSource.Provider {
	case config.ProviderAlpaca:
		provider = collector.NewAlpacaProvider(cfg.DataSource.APIKey, cfg.DataSource.APISecret)
	case config.ProviderREST:
		provider = collector.NewRESTProvider(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case config.ProviderMock:
		provider = &collector.MockProvider{Price: 100}
	default:
		provider = collector.NewYahooProvider(cfg.Proxy)
	}
	provider = collector.NewGuardedProvider(provider, breaker.DefaultConfig, metrics)
	observability.Info("data source ready", "provider", provider.Name())

	clk := clock.Real{}
	history := cache.NewHistoryCache(st, provider, clk, metrics)
	eval := evaluator.New(history, st, clk, metrics)
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, metrics)

	sched := scheduler.NewScheduler(ctx, st, eval, history, tn, cfg.Telegram.ChatID, clk)

	// Ops endpoint
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Metrics.Addr, observability.NewRouter(nil, st)); err != nil {
				observability.Error("metrics server", "error", err)
			}
		}()
	}

	if err := sched.Announce(ctx); err != nil {
		observability.Warn("send startup message", "error", err)
	}
	if err := sched.Start(); err != nil {
		observability.Fatal("start scheduler", "error", err)
	}

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	observability.Info("telegram polling started")

	observability.Info("SignalSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	observability.Info("shutdown signal received, stopping...")
	sched.Stop()
	observability.Info("SignalSentinel stopped")
}
