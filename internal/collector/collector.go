package collector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"PriceProphet/internal/model"
)

// DefaultLookback is one year of trading history.
const DefaultLookback = 365 * 24 * time.Hour

// Collector turns provider bars into the close-price series the forecaster consumes.
type Collector struct {
	Fetcher Fetcher
	Logger  zerolog.Logger
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, logger zerolog.Logger) *Collector {
	return &Collector{
		Fetcher: fetcher,
		Logger:  logger.With().Str("provider", fetcher.Name()).Logger(),
		Now:     time.Now,
	}
}

// Fetch performs one provider round trip and returns an ascending series of
// daily closes inside the lookback window. Every failure wraps model.ErrDataUnavailable.
func (c *Collector) Fetch(ctx context.Context, symbol string, lookback time.Duration) (model.Series, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol: %w", model.ErrDataUnavailable)
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, lookback)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s from %s: %w", model.ErrDataUnavailable, symbol, c.Fetcher.Name(), err)
	}

	series := ToSeries(bars, c.Now().Add(-lookback))
	if len(series) == 0 {
		return nil, fmt.Errorf("no rows for %s from %s: %w", symbol, c.Fetcher.Name(), model.ErrDataUnavailable)
	}

	c.Logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("points", len(series)).
		Time("last", series.Last().Time).
		Msg("series fetched")
	return series, nil
}

// ToSeries keeps bars at or after cutoff with a finite close, sorts them by
// time and collapses duplicate timestamps to the latest bar. Zero and negative
// closes are kept so the shaper can reject them.
func ToSeries(bars []model.OHLCV, cutoff time.Time) model.Series {
	points := make(model.Series, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}
		if !cutoff.IsZero() && b.Time.Before(cutoff) {
			continue
		}
		points = append(points, model.Point{Time: b.Time, Value: b.Close})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// NewFetcher builds the provider named by kind.
func NewFetcher(kind, baseURL, apiKey, proxyURL string, timeout time.Duration) (Fetcher, error) {
	switch strings.ToLower(kind) {
	case "", "yahoo":
		return NewYahooFetcher(baseURL, proxyURL, timeout), nil
	case "moex":
		return NewMOEXFetcher(baseURL, proxyURL, timeout), nil
	case "rest":
		if baseURL == "" {
			return nil, fmt.Errorf("rest provider requires base_url")
		}
		return NewRESTFetcher(baseURL, apiKey, proxyURL, timeout), nil
	case "mock":
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}
