package collector

import (
	"context"
	"sync"
	"time"

	"PriceProphet/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
	Err       error
	End       time.Time
	Calls     int

	mu sync.Mutex
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, lookback time.Duration) ([]model.OHLCV, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	end := m.End
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return generateMockBars(m.Price, end, lookbackDays(lookback)), nil
}

// generateMockBars produces weekday bars ending at end with a gentle upward drift.
func generateMockBars(basePrice float64, end time.Time, days int) []model.OHLCV {
	bars := make([]model.OHLCV, 0, days)
	for i := days - 1; i >= 0; i-- {
		t := end.AddDate(0, 0, -i)
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		n := len(bars)
		p := basePrice * (1 + float64(n-days/2)*0.001)
		bars = append(bars, model.OHLCV{
			Time:   t,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
	}
	return bars
}
