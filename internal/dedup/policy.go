// Package dedup decides whether a detected signal is worth notifying again.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"SignalSentinel/internal/clock"
	"SignalSentinel/internal/model"
)

// Decision reasons.
const (
	ReasonForced       = "forced check"
	ReasonFirst        = "first signal for ticker"
	ReasonFlipped      = "signal flipped"
	ReasonCooldown     = "cooldown elapsed"
	ReasonPriceChange  = "significant price change"
	ReasonDuplicate    = "duplicate signal (same kind, within cooldown, price unchanged)"
	ReasonInvalidPrior = "previous price unusable"
)

// HistoryReader reads the most recent accepted signal for a ticker. It returns nil when there is none.
type HistoryReader interface {
	LastSignal(ctx context.Context, ticker string) (*model.SignalRecord, error)
}

// Params are the live dedup settings.
type Params struct {
	CooldownHours  float64 // 0 disables the time-based repeat
	PriceChangePct float64
}

// Decision is the outcome of ShouldSend.
type Decision struct {
	Send   bool
	Reason string
	// Previous is the record the decision was compared against, nil for a first signal or a forced check.
	Previous *model.SignalRecord
	// ChangePct is the relative price move against Previous, in percent.
	ChangePct float64
}

// Policy applies the send/suppress rules against the signal history.
type Policy struct {
	history HistoryReader
	clock   clock.Clock
}

func NewPolicy(history HistoryReader, clk clock.Clock) *Policy {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Policy{history: history, clock: clk}
}

// ShouldSend decides whether a signal of kind at price should be delivered.
// Rules are evaluated in order: forced, first signal, flip, cooldown elapsed, price move, else suppress.
func (p *Policy) ShouldSend(ctx context.Context, ticker string, kind model.SignalKind, price float64, force bool, params Params) (Decision, error) {
	if force {
		return Decision{Send: true, Reason: ReasonForced}, nil
	}

	last, err := p.history.LastSignal(ctx, ticker)
	if err != nil {
		return Decision{}, fmt.Errorf("last signal %s: %w", ticker, err)
	}
	if last == nil {
		return Decision{Send: true, Reason: ReasonFirst}, nil
	}

	d := Decision{Previous: last}
	if last.Kind != kind {
		d.Send, d.Reason = true, ReasonFlipped
		return d, nil
	}

	if params.CooldownHours > 0 {
		cooldown := time.Duration(params.CooldownHours * float64(time.Hour))
		if p.clock.Now().Sub(last.CreatedAt) >= cooldown {
			d.Send, d.Reason = true, ReasonCooldown
			return d, nil
		}
	}

	if last.Price <= 0 {
		d.Send, d.Reason = true, ReasonInvalidPrior
		return d, nil
	}

	change := PriceChangePct(last.Price, price)
	d.ChangePct, _ = change.Float64()
	if change.GreaterThanOrEqual(decimal.NewFromFloat(params.PriceChangePct)) {
		d.Send, d.Reason = true, fmt.Sprintf("%s (%s%%)", ReasonPriceChange, change.StringFixed(2))
		return d, nil
	}

	d.Reason = ReasonDuplicate
	return d, nil
}

// PriceChangePct returns |current - previous| / previous * 100. previous must be positive.
func PriceChangePct(previous, current float64) decimal.Decimal {
	prev := decimal.NewFromFloat(previous)
	return decimal.NewFromFloat(current).Sub(prev).Abs().Div(prev).Mul(decimal.NewFromInt(100))
}
