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

// RESTProvider implements Provider against a generic JSON bars endpoint:
// GET {BaseURL}/api/v1/bars/daily?symbol=X&limit=N returning an array of bars.
type RESTProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTProvider creates a REST provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string) *RESTProvider {
	return &RESTProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (p *RESTProvider) Name() string { return "rest" }

// restBar is the expected JSON shape of one bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (p *RESTProvider) FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.Bar, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", p.BaseURL, url.QueryEscape(ticker), days)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("rest %s: status 404: %w", ticker, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars %s: status %d, body: %s", ticker, resp.StatusCode, string(body))
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("rest %s: %w", ticker, ErrNoData)
	}
	bars := make([]model.Bar, len(raw))
	for i, rb := range raw {
		bars[i] = model.Bar{
			Date:   model.TruncateDay(time.Unix(rb.Timestamp, 0)),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return dedupeByDay(bars), nil
}
