package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"PriceProphet/internal/model"
)

// Fetcher defines the interface for fetching daily market data.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, lookback time.Duration) ([]model.OHLCV, error)
	Name() string
}

// newHTTPClient builds the client shared by the HTTP providers, with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func lookbackDays(lookback time.Duration) int {
	days := int(lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}
