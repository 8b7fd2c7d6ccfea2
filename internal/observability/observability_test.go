package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoggingHelpers(t *testing.T) {
	var buf bytes.Buffer
	Logger = newLogger(&buf, false, slog.LevelDebug)

	WithTicker("NVDA").Info("evaluated", "status", "sent")
	if !strings.Contains(buf.String(), "ticker=NVDA") {
		t.Errorf("expected ticker attribute, got %q", buf.String())
	}

	buf.Reset()
	WithError(errors.New("boom")).Warn("fetch failed")
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("expected error attribute, got %q", buf.String())
	}

	buf.Reset()
	Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Error("Debug should log at debug level")
	}
}

func TestProductionLoggerIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, true, slog.LevelInfo)
	l.Info("hello", "k", 1)
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSignal("STRONG BUY", "sent")
	m.RecordSignal("STRONG BUY", "sent")
	m.RecordSignal("STRONG SELL", "suppressed")
	if got := testutil.ToFloat64(m.SignalsTotal.WithLabelValues("STRONG BUY", "sent")); got != 2 {
		t.Errorf("expected 2 sent buys, got %v", got)
	}

	m.RecordProviderRequest("yahoo", 100*time.Millisecond, nil)
	m.RecordProviderRequest("yahoo", 100*time.Millisecond, errors.New("503"))
	if got := testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("yahoo")); got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderErrorsTotal.WithLabelValues("yahoo")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}

	m.SetCircuitBreakerState("yahoo", 2)
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("yahoo")); got != 2 {
		t.Errorf("expected open state, got %v", got)
	}

	m.RecordPass("ok", false, time.Second)
	if got := testutil.ToFloat64(m.PassesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 pass, got %v", got)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordCacheResult(CacheFresh)

	h := NewRouter(reg, stubPinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "signal_sentinel_cache_results_total") {
		t.Error("expected cache metric in exposition")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", rec.Code)
	}
}

func TestRouter_HealthDegraded(t *testing.T) {
	h := NewRouter(prometheus.NewRegistry(), stubPinger{err: errors.New("locked")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("expected degraded status, got %s", rec.Body.String())
	}
}
