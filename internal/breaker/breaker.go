package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"SignalSentinel/internal/observability"
)

// Config holds the trip and recovery parameters of a circuit breaker.
type Config struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before transitioning to half-open
	MinRequests uint32        // requests needed in a window before the failure ratio counts
	MaxFailRate float64
	// IsSuccessful decides which errors count against the breaker. Nil counts every error.
	IsSuccessful func(err error) bool
}

var DefaultConfig = Config{
	MaxRequests: 3,
	Interval:    5 * time.Minute,
	Timeout:     2 * time.Minute,
	MinRequests: 5,
	MaxFailRate: 0.5,
}

// Breaker names.
const (
	Telegram = "telegram"
)

// ErrUnavailable is returned while a breaker rejects calls.
var ErrUnavailable = errors.New("service unavailable")

// New creates a breaker that logs state changes and reports them to metrics.
// A nil metrics uses the global instance.
func New[T any](name string, cfg Config, metrics *observability.Metrics) *gobreaker.CircuitBreaker[T] {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.MaxFailRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	})
}

// Wrap maps gobreaker rejections to ErrUnavailable and passes other errors through.
func Wrap(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
	}
	return err
}

// IgnoreCancellation counts context cancellation and deadline errors as successes.
func IgnoreCancellation(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
