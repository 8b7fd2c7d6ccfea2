package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"SignalSentinel/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_BarsUpsertAndRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LatestBarDate(ctx, "AAPL"); err != nil || ok {
		t.Fatalf("expected no cached date, got ok=%v err=%v", ok, err)
	}

	bars := []model.Bar{
		{Date: day(2026, 3, 2), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: day(2026, 3, 3), Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 200},
	}
	if err := s.UpsertBars(ctx, "AAPL", bars); err != nil {
		t.Fatalf("UpsertBars failed: %v", err)
	}

	// Re-fetch of a provisional day overwrites it.
	if err := s.UpsertBars(ctx, "AAPL", []model.Bar{
		{Date: day(2026, 3, 3), Open: 2, High: 4, Low: 1.5, Close: 3.5, Volume: 300},
		{Date: day(2026, 3, 4), Open: 3, High: 5, Low: 2.5, Close: 4.5, Volume: 400},
	}); err != nil {
		t.Fatalf("UpsertBars failed: %v", err)
	}

	last, ok, err := s.LatestBarDate(ctx, "AAPL")
	if err != nil || !ok {
		t.Fatalf("LatestBarDate: ok=%v err=%v", ok, err)
	}
	if !last.Equal(day(2026, 3, 4)) {
		t.Errorf("expected 2026-03-04, got %s", last)
	}

	got, err := s.BarsSince(ctx, "AAPL", day(2026, 3, 1))
	if err != nil {
		t.Fatalf("BarsSince failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if got[1].Close != 3.5 {
		t.Errorf("expected overwritten close 3.5, got %f", got[1].Close)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Date.After(got[i-1].Date) {
			t.Errorf("bars not ascending at %d", i)
		}
	}

	got, err = s.BarsSince(ctx, "AAPL", day(2026, 3, 4))
	if err != nil {
		t.Fatalf("BarsSince failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 bar on or after cutoff, got %d", len(got))
	}

	other, err := s.BarsSince(ctx, "MSFT", day(2020, 1, 1))
	if err != nil {
		t.Fatalf("BarsSince failed: %v", err)
	}
	if other != nil {
		t.Errorf("expected nil for unknown ticker, got %d bars", len(other))
	}
}

func TestStore_WatchlistDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddToWatchlist(ctx, model.WatchlistEntry{Ticker: "MSFT", Name: "Microsoft"}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := s.AddToWatchlist(ctx, model.WatchlistEntry{Ticker: "msft", Name: "Other"})
	if !errors.Is(err, ErrDuplicateTicker) {
		t.Fatalf("expected ErrDuplicateTicker, got %v", err)
	}

	entries, err := s.Watchlist(ctx)
	if err != nil {
		t.Fatalf("Watchlist failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "Microsoft" {
		t.Errorf("duplicate add mutated name: %q", entries[0].Name)
	}

	if err := s.RemoveFromWatchlist(ctx, "Msft"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := s.RemoveFromWatchlist(ctx, "MSFT"); !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestStore_ConfigAndSeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetConfig(ctx, "check_interval"); !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}

	defaults := map[string]string{"check_interval": "900", "rpp_buy_threshold": "10"}
	watch := []model.WatchlistEntry{{Ticker: "nvda", Name: "Nvidia"}, {Ticker: "KO"}}
	if err := s.Seed(ctx, defaults, watch); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := s.SetConfig(ctx, "check_interval", "1800"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	// Seeding again must not overwrite operator changes.
	if err := s.Seed(ctx, defaults, watch); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}

	v, err := s.GetConfig(ctx, "check_interval")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if v != "1800" {
		t.Errorf("expected 1800, got %s", v)
	}

	entries, err := s.Watchlist(ctx)
	if err != nil {
		t.Fatalf("Watchlist failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Ticker != "KO" || entries[1].Ticker != "NVDA" {
		t.Errorf("unexpected seeded watchlist: %+v", entries)
	}
}

func TestStore_SignalHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.LastSignal(ctx, "TEST")
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %+v err=%v", rec, err)
	}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []model.SignalRecord{
		{Ticker: "TEST", Kind: model.SignalStrongBuy, Price: 100, RPPScore: 8.5, CreatedAt: base},
		{Ticker: "TEST", Kind: model.SignalStrongSell, Price: 120, RPPScore: 92, CreatedAt: base.Add(time.Hour)},
		{Ticker: "OTHER", Kind: model.SignalStrongBuy, Price: 50, RPPScore: 5, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range records {
		if err := s.AppendSignal(ctx, &records[i]); err != nil {
			t.Fatalf("AppendSignal failed: %v", err)
		}
		if records[i].ID == 0 {
			t.Errorf("expected id to be set")
		}
	}

	last, err := s.LastSignal(ctx, "TEST")
	if err != nil {
		t.Fatalf("LastSignal failed: %v", err)
	}
	if last.Kind != model.SignalStrongSell || last.Price != 120 {
		t.Errorf("unexpected last signal: %+v", last)
	}
	if !last.CreatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected timestamp: %s", last.CreatedAt)
	}

	recent, err := s.SignalsSince(ctx, base.Add(30*time.Minute), 0)
	if err != nil {
		t.Fatalf("SignalsSince failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Ticker != "OTHER" {
		t.Errorf("expected 2 records newest first, got %+v", recent)
	}

	limited, err := s.SignalsSince(ctx, base, 1)
	if err != nil {
		t.Fatalf("SignalsSince failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}
