package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"SignalSentinel/internal/config"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/observability"
	"SignalSentinel/internal/strategy"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) (*TelegramNotifier, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := observability.NewMetrics(prometheus.NewRegistry())
	n := NewTelegramNotifier("TOKEN", "-100", "", m)
	n.BaseURL = srv.URL
	return n, m
}

func TestDeliver(t *testing.T) {
	var payload map[string]any
	var path string
	n, m := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	if err := n.Deliver(context.Background(), "<b>hi</b>", "42"); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if payload["chat_id"] != "42" || payload["parse_mode"] != "HTML" || payload["text"] != "<b>hi</b>" {
		t.Errorf("unexpected payload %v", payload)
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues(DeliverySent)); got != 1 {
		t.Errorf("expected 1 sent, got %v", got)
	}
}

func TestSend_UsesConfiguredChat(t *testing.T) {
	var chat any
	n, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		chat = p["chat_id"]
	})
	if err := n.Send(context.Background(), "x"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if chat != "-100" {
		t.Errorf("expected configured chat, got %v", chat)
	}
}

func TestDeliver_FailureIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	n, m := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"ok":false,"description":"Bad Request: chat not found"}`, http.StatusBadRequest)
	})

	err := n.Deliver(context.Background(), "x", "1")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues(DeliveryFailed)); got != 1 {
		t.Errorf("expected 1 failed, got %v", got)
	}
}

func TestGetUpdatesAndCommands(t *testing.T) {
	n, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "7" {
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"text":" /watchlist ","from":{"id":1937651844},"chat":{"id":1937651844}}},
			{"update_id":8,"message":{"text":"","chat":{"id":5}}},
			{"update_id":9}
		]}`))
	})

	updates, err := n.getUpdates(context.Background(), http.DefaultClient, 7, 0)
	if err != nil {
		t.Fatalf("getUpdates failed: %v", err)
	}
	offset := 7
	cmds := commands(updates, &offset)
	if offset != 10 {
		t.Errorf("expected offset 10, got %d", offset)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	want := Command{UserID: "1937651844", ChatID: "1937651844", Text: "/watchlist"}
	if cmds[0] != want {
		t.Errorf("expected %+v, got %+v", want, cmds[0])
	}
}

func TestStartPolling_RepliesAndStops(t *testing.T) {
	var sent atomic.Value
	var calls atomic.Int32
	n, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var p map[string]any
			_ = json.NewDecoder(r.Body).Decode(&p)
			sent.Store(p["text"])
			return
		}
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":1,"message":{"text":"/start","from":{"id":1},"chat":{"id":1}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd Command) string {
			return "reply to " + cmd.Text
		})
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for sent.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("no reply sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	if sent.Load() != "reply to /start" {
		t.Errorf("unexpected reply %v", sent.Load())
	}
}

func TestFormatSignal_EscapesHTML(t *testing.T) {
	msg := FormatSignal(model.Notification{
		Verdict: model.SignalVerdict{
			Ticker: "NVDA",
			Kind:   model.SignalStrongBuy,
			Indicators: model.Indicators{
				Price: 80, RPP: 4.55,
				Bands: model.Bands{Upper: 107.94, Middle: 99, Lower: 90.06},
			},
			Triggers: []string{"Price below Lower Bollinger Band ($90.06)", "RPP Score (4.55%) < 10%"},
		},
		Reason:     "first signal for ticker",
		DetectedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{"STRONG BUY: NVDA", "$80.00", "4.55%", "Lower: $90.06", "&lt; 10%", "2026-03-10 15:00:00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in message:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, ") < 10") {
		t.Error("raw < must be escaped for HTML parse mode")
	}
}

func TestFormatAnalysis_NoSignal(t *testing.T) {
	a := strategy.Analysis{
		Verdict: model.SignalVerdict{Ticker: "KO", Indicators: model.Indicators{Price: 60, RPP: 50}},
		Band:    strategy.BandInside,
		RPP:     strategy.RPPMidRange,
		Reasons: []string{"Both conditions not met"},
	}
	msg := FormatAnalysis(a, time.Now())
	if !strings.Contains(msg, "KO - No Signal") || !strings.Contains(msg, "Why No Signal?") {
		t.Errorf("unexpected analysis message:\n%s", msg)
	}
}

func TestFormatSettings(t *testing.T) {
	msg := FormatSettings(config.Settings{CheckInterval: 15 * time.Minute, BuyThreshold: 10, SellThreshold: 90, PriceChangePct: 5})
	if !strings.Contains(msg, "15 minutes") || !strings.Contains(msg, "Disabled") {
		t.Errorf("unexpected settings message:\n%s", msg)
	}
}

func TestFormatHistoryAndWatchlist(t *testing.T) {
	if msg := FormatHistory(nil, 7); !strings.Contains(msg, "No signals in the last 7 days") {
		t.Errorf("unexpected empty history: %s", msg)
	}
	msg := FormatHistory([]model.SignalRecord{{Ticker: "V", Kind: model.SignalStrongSell, Price: 300, RPPScore: 95}}, 7)
	if !strings.Contains(msg, "<b>V</b> - STRONG SELL") {
		t.Errorf("unexpected history: %s", msg)
	}
	msg = FormatWatchlist([]model.WatchlistEntry{{Ticker: "ADS.DE", Name: "Adidas"}, {Ticker: "KO"}})
	if !strings.Contains(msg, "ADS.DE (Adidas)") || !strings.Contains(msg, "Total: 2 stocks") {
		t.Errorf("unexpected watchlist: %s", msg)
	}
}
