package calculator

import "SignalSentinel/internal/model"

const (
	BollingerPeriod = 20
	BollingerStdDev = 2.0
)

// CalculateBollinger returns the latest Bollinger Bands over the trailing 20 closes.
func CalculateBollinger(bars []model.Bar) (model.Bands, error) {
	if len(bars) < BollingerPeriod {
		return model.Bands{}, ErrInsufficientHistory
	}
	closes := extractCloses(bars)
	sma, err := CalculateSMA(closes, BollingerPeriod)
	if err != nil {
		return model.Bands{}, err
	}
	sd, err := CalculateStdDev(closes, BollingerPeriod, sma)
	if err != nil {
		return model.Bands{}, err
	}
	return model.Bands{
		Upper:  sma + BollingerStdDev*sd,
		Middle: sma,
		Lower:  sma - BollingerStdDev*sd,
	}, nil
}
