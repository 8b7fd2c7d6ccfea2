package calculator

import (
	"errors"
	"math"

	"SignalSentinel/internal/model"
)

// ErrInsufficientHistory is returned when a series is shorter than an indicator's minimum length.
var ErrInsufficientHistory = errors.New("insufficient history")

// CalculateSMA computes the simple moving average of the trailing period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientHistory
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateStdDev computes the sample standard deviation (n-1) of the trailing period prices around mean.
func CalculateStdDev(prices []float64, period int, mean float64) (float64, error) {
	if period < 2 {
		return 0, errors.New("period must be at least 2")
	}
	if len(prices) < period {
		return 0, ErrInsufficientHistory
	}
	sumSq := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(period-1)), nil
}

func extractCloses(bars []model.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
