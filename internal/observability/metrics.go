package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signal_sentinel"

// Cache lookup outcomes.
const (
	CacheFresh    = "fresh"
	CacheFetched  = "fetched"
	CacheFallback = "fallback"
	CacheMiss     = "miss"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Evaluation passes
	PassesTotal  *prometheus.CounterVec
	PassDuration *prometheus.HistogramVec

	// Signals
	SignalsTotal *prometheus.CounterVec

	// Market data providers
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderErrorsTotal   *prometheus.CounterVec
	ProviderDuration      *prometheus.HistogramVec

	// History cache
	CacheResultsTotal *prometheus.CounterVec

	// Telegram delivery
	NotificationsTotal *prometheus.CounterVec

	// Circuit breakers
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

var defaultBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

var globalMetrics *Metrics

// NewMetrics creates and registers all metrics on reg, or the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "passes_total",
				Help:      "Total number of evaluation passes by outcome",
			},
			[]string{"status"},
		),
		PassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "pass_duration_seconds",
				Help:      "Duration of an evaluation pass over the watchlist",
				Buckets:   defaultBuckets,
			},
			[]string{"forced"},
		),
		SignalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "signals_total",
				Help:      "Detected signals by kind and dedup decision",
			},
			[]string{"kind", "decision"},
		),
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of market data requests",
			},
			[]string{"provider"},
		),
		ProviderErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Total number of failed market data requests",
			},
			[]string{"provider"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "duration_seconds",
				Help:      "Duration of market data requests",
				Buckets:   defaultBuckets,
			},
			[]string{"provider"},
		),
		CacheResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "results_total",
				Help:      "History cache lookups by outcome",
			},
			[]string{"result"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifier",
				Name:      "messages_total",
				Help:      "Telegram messages by delivery status",
			},
			[]string{"status"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Number of times a circuit breaker opened",
			},
			[]string{"breaker"},
		),
	}
}

// InitMetrics registers the global metrics on the default registerer.
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics, initializing them on first use.
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

func (m *Metrics) RecordPass(status string, forced bool, d time.Duration) {
	m.PassesTotal.WithLabelValues(status).Inc()
	f := "false"
	if forced {
		f = "true"
	}
	m.PassDuration.WithLabelValues(f).Observe(d.Seconds())
}

// RecordSignal counts a detected signal and whether it was sent or suppressed.
func (m *Metrics) RecordSignal(kind, decision string) {
	m.SignalsTotal.WithLabelValues(kind, decision).Inc()
}

func (m *Metrics) RecordProviderRequest(provider string, d time.Duration, err error) {
	m.ProviderRequestsTotal.WithLabelValues(provider).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) RecordCacheResult(result string) {
	m.CacheResultsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordNotification(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCircuitBreakerState(breaker string, state int) {
	m.CircuitBreakerState.WithLabelValues(breaker).Set(float64(state))
}

func (m *Metrics) RecordCircuitBreakerTrip(breaker string) {
	m.CircuitBreakerTrips.WithLabelValues(breaker).Inc()
}
