package calculator

import (
	"errors"
	"math"

	"SignalSentinel/internal/model"
)

const (
	// RPPWindow is the trailing number of bars scanned for the price range.
	RPPWindow = 180
	// MinBars is the minimum series length for either indicator.
	MinBars = 20
)

// ErrFlatRange is returned when the window's highest high equals its lowest low.
var ErrFlatRange = errors.New("flat price range")

// CalculateRPP returns the Relative Price Position of the latest close within the trailing
// low/high range, as a percentage. The score can fall outside [0,100] when the latest bar
// closes beyond the window's extremes.
//
// With ErrFlatRange the current price is still returned.
func CalculateRPP(bars []model.Bar) (score, price float64, err error) {
	if len(bars) < MinBars {
		return 0, 0, ErrInsufficientHistory
	}
	start := len(bars) - RPPWindow
	if start < 0 {
		start = 0
	}
	window := bars[start:]

	minLow := math.Inf(1)
	maxHigh := math.Inf(-1)
	for _, b := range window {
		if b.Low < minLow {
			minLow = b.Low
		}
		if b.High > maxHigh {
			maxHigh = b.High
		}
	}
	price = model.LastClose(window)

	if maxHigh == minLow {
		return 0, price, ErrFlatRange
	}
	return (price - minLow) / (maxHigh - minLow) * 100, price, nil
}
