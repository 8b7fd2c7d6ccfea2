package strategy

import "SignalSentinel/internal/model"

// BandStatus places the price relative to the Bollinger envelope.
type BandStatus string

const (
	BandBelowLower BandStatus = "Below Lower Band (Oversold)"
	BandAboveUpper BandStatus = "Above Upper Band (Overbought)"
	BandInside     BandStatus = "Within Bands (Normal)"
)

// RPPStatus places the RPP score relative to the thresholds.
type RPPStatus string

const (
	RPPNearLow  RPPStatus = "Near Low"
	RPPNearHigh RPPStatus = "Near High"
	RPPMidRange RPPStatus = "Mid-Range"
)

// Analysis is an on-demand, read-only view of a ticker's indicators.
type Analysis struct {
	Verdict    model.SignalVerdict
	Thresholds Thresholds
	Band       BandStatus
	RPP        RPPStatus
	// Reasons explains a missing signal; empty when Verdict carries one.
	Reasons []string
}

// Analyze classifies bars and, when no signal fires, explains which condition was missed.
func Analyze(ticker string, bars []model.Bar, th Thresholds) (Analysis, error) {
	verdict, err := Classify(ticker, bars, th)
	if err != nil {
		return Analysis{Verdict: verdict, Thresholds: th}, err
	}
	ind := verdict.Indicators
	a := Analysis{Verdict: verdict, Thresholds: th}

	switch {
	case ind.Price < ind.Bands.Lower:
		a.Band = BandBelowLower
	case ind.Price > ind.Bands.Upper:
		a.Band = BandAboveUpper
	default:
		a.Band = BandInside
	}

	switch {
	case ind.RPP < th.BuyPct:
		a.RPP = RPPNearLow
	case ind.RPP > th.SellPct:
		a.RPP = RPPNearHigh
	default:
		a.RPP = RPPMidRange
	}

	if verdict.HasSignal() {
		return a, nil
	}
	switch {
	case ind.Price >= ind.Bands.Lower && ind.RPP >= th.BuyPct:
		a.Reasons = []string{"Price not oversold enough", "RPP not low enough for BUY"}
	case ind.Price <= ind.Bands.Upper && ind.RPP <= th.SellPct:
		a.Reasons = []string{"Price not overbought enough", "RPP not high enough for SELL"}
	default:
		a.Reasons = []string{"Both conditions not met"}
	}
	return a, nil
}
