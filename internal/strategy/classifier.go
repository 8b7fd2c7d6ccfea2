package strategy

import (
	"fmt"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
)

// Thresholds are the RPP percentages a signal must cross, each in [0,100].
type Thresholds struct {
	BuyPct  float64
	SellPct float64
}

// Indicators computes RPP and Bollinger values for a series. Any undefined
// indicator is reported through err (calculator.ErrInsufficientHistory or calculator.ErrFlatRange).
func Indicators(bars []model.Bar) (model.Indicators, error) {
	rpp, price, err := calculator.CalculateRPP(bars)
	if err != nil {
		return model.Indicators{Price: price}, fmt.Errorf("rpp: %w", err)
	}
	bands, err := calculator.CalculateBollinger(bars)
	if err != nil {
		return model.Indicators{Price: price, RPP: rpp}, fmt.Errorf("bollinger: %w", err)
	}
	return model.Indicators{Price: price, RPP: rpp, Bands: bands}, nil
}

// Classify turns a bar series into a verdict. A series whose indicators are
// undefined returns an error and a verdict of kind SignalNone.
func Classify(ticker string, bars []model.Bar, th Thresholds) (model.SignalVerdict, error) {
	ind, err := Indicators(bars)
	verdict := model.SignalVerdict{Ticker: ticker, Kind: model.SignalNone, Indicators: ind}
	if err != nil {
		return verdict, err
	}
	verdict.Kind, verdict.Triggers = decide(ind, th)
	return verdict, nil
}

// decide applies the buy rule before the sell rule; both read the same snapshot.
func decide(ind model.Indicators, th Thresholds) (model.SignalKind, []string) {
	switch {
	case ind.Price < ind.Bands.Lower && ind.RPP < th.BuyPct:
		return model.SignalStrongBuy, []string{
			fmt.Sprintf("Price below Lower Bollinger Band ($%.2f)", ind.Bands.Lower),
			fmt.Sprintf("RPP Score (%.2f%%) < %g%%", ind.RPP, th.BuyPct),
		}
	case ind.Price > ind.Bands.Upper && ind.RPP > th.SellPct:
		return model.SignalStrongSell, []string{
			fmt.Sprintf("Price above Upper Bollinger Band ($%.2f)", ind.Bands.Upper),
			fmt.Sprintf("RPP Score (%.2f%%) > %g%%", ind.RPP, th.SellPct),
		}
	default:
		return model.SignalNone, nil
	}
}
