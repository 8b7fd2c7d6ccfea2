package model

import "time"

// SignalKind is the classification outcome for a ticker.
type SignalKind string

const (
	SignalNone       SignalKind = ""
	SignalStrongBuy  SignalKind = "STRONG BUY"
	SignalStrongSell SignalKind = "STRONG SELL"
)

// Valid reports whether k is a recordable signal kind.
func (k SignalKind) Valid() bool {
	return k == SignalStrongBuy || k == SignalStrongSell
}

// SignalVerdict is the transient result of classifying a bar series.
type SignalVerdict struct {
	Ticker     string
	Kind       SignalKind
	Indicators Indicators
	Triggers   []string
}

// HasSignal reports whether the verdict carries a buy or sell signal.
func (v SignalVerdict) HasSignal() bool {
	return v.Kind.Valid()
}

// SignalRecord is an accepted signal in the append-only history log.
type SignalRecord struct {
	ID        int64
	Ticker    string
	Kind      SignalKind
	Price     float64
	RPPScore  float64
	CreatedAt time.Time
}

// Notification is the payload emitted for an accepted signal. Delivery is a separate step.
type Notification struct {
	Verdict    SignalVerdict
	Reason     string
	DetectedAt time.Time
}
