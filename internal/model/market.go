package model

import "time"

// DateLayout is the calendar-day key used for cached bars.
const DateLayout = "2006-01-02"

// Bar represents a single daily OHLCV candle. Date is normalized to UTC midnight.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DateKey returns the calendar-day key of the bar.
func (b Bar) DateKey() string {
	return b.Date.UTC().Format(DateLayout)
}

// TruncateDay returns t at UTC midnight of the same calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastClose returns the close of the most recent bar, or 0 for an empty series.
func LastClose(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}
