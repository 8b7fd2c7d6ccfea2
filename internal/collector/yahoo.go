package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"SignalSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider implements Provider using the Yahoo Finance chart API.
type YahooProvider struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps watchlist ticker to Yahoo symbol
}

// NewYahooProvider creates a Yahoo Finance provider with optional proxy support.
func NewYahooProvider(proxyURL string) *YahooProvider {
	return &YahooProvider{
		BaseURL: yahooBaseURL,
		Client:  newHTTPClient(proxyURL),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) yahooSymbol(ticker string) string {
	if mapped, ok := p.SymbolMap[ticker]; ok {
		return mapped
	}
	return ticker
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// yahooRange picks the smallest chart range covering the requested number of calendar days.
func yahooRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	default:
		return "2y"
	}
}

func (p *YahooProvider) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		p.BaseURL, url.PathEscape(p.yahooSymbol(ticker)), yahooRange(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// unknown or delisted symbol
		return nil, fmt.Errorf("yahoo %s: status 404: %w", ticker, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s: status %d, body: %s", ticker, resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %w", ticker, chart.Chart.Error.Description, ErrNoData)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", ticker, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	offset := time.Duration(result.Meta.GMTOffset) * time.Second
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, okO := at(quote.Open, i)
		h, okH := at(quote.High, i)
		l, okL := at(quote.Low, i)
		c, okC := at(quote.Close, i)
		if !okO || !okH || !okL || !okC {
			continue // partial or null bar (holiday or halted session)
		}
		v, _ := at(quote.Volume, i)
		bars = append(bars, model.Bar{
			// exchange-local trading day
			Date:   model.TruncateDay(time.Unix(ts, 0).Add(offset)),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return dedupeByDay(bars), nil
}

// dedupeByDay keeps the last bar of each calendar day in a sorted series.
// Yahoo appends a live bar for the current session that can share a day with the last close.
func dedupeByDay(bars []model.Bar) []model.Bar {
	if len(bars) < 2 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Date.Equal(out[len(out)-1].Date) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
