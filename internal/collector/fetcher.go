package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"SignalSentinel/internal/model"
)

// ErrNoData is returned when a provider answers successfully but with no bars.
var ErrNoData = errors.New("no data returned")

// Provider fetches daily OHLCV history for a ticker.
// Bars are returned in ascending date order with dates normalized to UTC midnight.
type Provider interface {
	FetchDailyBars(ctx context.Context, ticker string, days int) ([]model.Bar, error)
	Name() string
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}
