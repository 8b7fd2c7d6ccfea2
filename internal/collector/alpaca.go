package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"SignalSentinel/internal/model"
)

// alpacaBarsClient is the subset of *marketdata.Client used here.
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider implements Provider using the Alpaca market data API.
type AlpacaProvider struct {
	client alpacaBarsClient
	now    func() time.Time
}

// NewAlpacaProvider creates a provider backed by the Alpaca data API.
func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		now: time.Now,
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

func (p *AlpacaProvider) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := p.now()
	start := end.AddDate(0, 0, -days)

	raw, err := p.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", ticker, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("alpaca %s: %w", ticker, ErrNoData)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, model.Bar{
			Date:   model.TruncateDay(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return dedupeByDay(bars), nil
}
