package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceProphet/internal/collector"
	"PriceProphet/internal/forecast"
	"PriceProphet/internal/model"
	"PriceProphet/internal/prophet"
	"PriceProphet/internal/recorder"
)

var (
	day0  = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	clock = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
)

func flatSeries(last float64, n int) model.Series {
	s := make(model.Series, n)
	for i := range s {
		s[i] = model.Point{Time: day0.AddDate(0, 0, i), Value: last}
	}
	return s
}

// stubFetcher serves canned series per symbol; unknown symbols are unavailable.
type stubFetcher struct {
	mu     sync.Mutex
	series map[string]model.Series
	calls  []string
}

func (f *stubFetcher) Fetch(_ context.Context, symbol string, _ time.Duration) (model.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()
	s, ok := f.series[symbol]
	if !ok || len(s) == 0 {
		return nil, fmt.Errorf("no rows for %s: %w", symbol, model.ErrDataUnavailable)
	}
	return s, nil
}

// stubForecaster ends every forecast at finals[symbol's last value].
type stubForecaster struct {
	final map[float64]float64
	err   error
}

func (f *stubForecaster) Forecast(series model.Series, horizon int) ([]model.ForecastPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon %d", model.ErrFitFailure, horizon)
	}
	last := series.Last()
	end, ok := f.final[last.Value]
	if !ok {
		end = last.Value
	}
	pts := make([]model.ForecastPoint, horizon)
	for i := range pts {
		v := last.Value + (end-last.Value)*float64(i+1)/float64(horizon)
		pts[i] = model.ForecastPoint{Time: last.Time.AddDate(0, 0, i+1), Estimate: v, Lower: v - 1, Upper: v + 1}
	}
	return pts, nil
}

type spyRecorder struct {
	mu   sync.Mutex
	runs []*recorder.ForecastRun
	err  error
}

func (r *spyRecorder) RecordForecast(run *recorder.ForecastRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func (r *spyRecorder) RecentForecasts(string, int) ([]recorder.RunSummary, error) { return nil, nil }
func (r *spyRecorder) Close() error                                               { return nil }

type spyMetrics struct {
	mu      sync.Mutex
	fetches map[bool]int
	stages  map[model.Stage]int
	results int
}

func newSpyMetrics() *spyMetrics {
	return &spyMetrics{fetches: map[bool]int{}, stages: map[model.Stage]int{}}
}

func (m *spyMetrics) RecordFetch(_ string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[ok]++
}

func (m *spyMetrics) RecordOutcome(stage model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func (m *spyMetrics) RecordLatency(string, time.Duration) {}

func (m *spyMetrics) RecordResult(*model.ForecastResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results++
}

func newStubPipeline(opts ...Option) (*Pipeline, *stubFetcher) {
	f := &stubFetcher{series: map[string]model.Series{
		"AAA": flatSeries(100, 30),
		"BBB": flatSeries(200, 30),
		"CCC": flatSeries(50, 30),
	}}
	fc := &stubForecaster{final: map[float64]float64{100: 106, 200: 198, 50: 70}}
	return New(f, fc, append([]Option{WithClock(clock)}, opts...)...), f
}

func TestRun_Scenarios(t *testing.T) {
	p, _ := newStubPipeline()

	tests := []struct {
		symbol     string
		trend      model.Trend
		changePct  float64
		confidence float64
	}{
		{"AAA", model.TrendBullish, 6, 76},
		{"BBB", model.TrendBearish, -1, 71},
		{"CCC", model.TrendBullish, 40, 95},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			out := p.Run(context.Background(), tt.symbol, 5)
			require.True(t, out.OK(), "err: %v", out.Err)
			assert.Equal(t, model.StageDone, out.Stage)
			assert.Equal(t, tt.trend, out.Result.Trend)
			assert.InDelta(t, tt.changePct, out.Result.PriceChangePct, 1e-9)
			assert.InDelta(t, tt.confidence, out.Result.Confidence, 1e-9)
			assert.Len(t, out.Result.Forecast, 5)
			assert.Equal(t, clock(), out.Result.GeneratedAt)
			require.NotNil(t, out.Indicators)
		})
	}
}

func TestRun_DefaultHorizon(t *testing.T) {
	p, _ := newStubPipeline()
	out := p.Run(context.Background(), "AAA", 0)
	require.True(t, out.OK())
	assert.Len(t, out.Result.Forecast, forecast.DefaultHorizon)
}

func TestRun_Failures(t *testing.T) {
	t.Run("empty fetch", func(t *testing.T) {
		p, _ := newStubPipeline()
		out := p.Run(context.Background(), "ZZZ", 5)
		assert.False(t, out.OK())
		assert.Nil(t, out.Result)
		assert.Equal(t, model.StageFetch, out.Stage)
		assert.ErrorIs(t, out.Err, model.ErrDataUnavailable)
		assert.False(t, out.Violation())
	})

	t.Run("fit failure", func(t *testing.T) {
		f := &stubFetcher{series: map[string]model.Series{"AAA": flatSeries(100, 30)}}
		p := New(f, &stubForecaster{err: fmt.Errorf("%w: singular", model.ErrFitFailure)})
		out := p.Run(context.Background(), "AAA", 5)
		assert.Nil(t, out.Result)
		assert.Equal(t, model.StageFit, out.Stage)
		assert.ErrorIs(t, out.Err, model.ErrFitFailure)
		assert.NotNil(t, out.Indicators)
	})

	t.Run("negative horizon", func(t *testing.T) {
		p, _ := newStubPipeline()
		out := p.Run(context.Background(), "AAA", -1)
		assert.Equal(t, model.StageFit, out.Stage)
		assert.ErrorIs(t, out.Err, model.ErrFitFailure)
	})

	t.Run("zero last price", func(t *testing.T) {
		f := &stubFetcher{series: map[string]model.Series{"AAA": flatSeries(0, 30)}}
		p := New(f, &stubForecaster{})
		out := p.Run(context.Background(), "AAA", 5)
		assert.Nil(t, out.Result)
		assert.Equal(t, model.StageShape, out.Stage)
		assert.True(t, out.Violation())
	})
}

func TestRun_RecordsAndCounts(t *testing.T) {
	rec := &spyRecorder{err: errors.New("disk full")}
	m := newSpyMetrics()
	p, _ := newStubPipeline(WithRecorder(rec), WithMetrics(m), WithProvider("stub"), WithLogger(zerolog.Nop()))

	ok := p.Run(context.Background(), "AAA", 3)
	missing := p.Run(context.Background(), "ZZZ", 3)

	assert.True(t, ok.OK(), "recorder errors must not change the outcome")
	assert.False(t, missing.OK())
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "stub", rec.runs[0].Provider)
	assert.Equal(t, 3, rec.runs[0].Horizon)
	assert.Equal(t, 1, m.fetches[true])
	assert.Equal(t, 1, m.fetches[false])
	assert.Equal(t, 1, m.stages[model.StageDone])
	assert.Equal(t, 1, m.stages[model.StageFetch])
	assert.Equal(t, 1, m.results)
}

func TestRunBatch_IsolatesFailuresAndKeepsOrder(t *testing.T) {
	symbols := []string{"AAA", "ZZZ", "BBB", "YYY", "CCC"}
	for _, n := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", n), func(t *testing.T) {
			p, f := newStubPipeline(WithConcurrency(n))
			outs := p.RunBatch(context.Background(), symbols, 5)

			require.Len(t, outs, len(symbols))
			for i, o := range outs {
				assert.Equal(t, symbols[i], o.Symbol)
			}
			assert.True(t, outs[0].OK())
			assert.False(t, outs[1].OK())
			assert.True(t, outs[2].OK())
			assert.False(t, outs[3].OK())
			assert.True(t, outs[4].OK())
			assert.Len(t, f.calls, len(symbols))

			counts := Summary(outs)
			assert.Equal(t, 3, counts[model.StageDone])
			assert.Equal(t, 2, counts[model.StageFetch])
		})
	}
}

func TestRunBatch_Empty(t *testing.T) {
	p, _ := newStubPipeline()
	assert.Empty(t, p.RunBatch(context.Background(), nil, 5))
}

func TestRun_EndToEndWithMockProvider(t *testing.T) {
	mock := &collector.MockFetcher{Price: 150, End: day0.AddDate(0, 3, 0)}
	col := collector.NewCollector(mock, zerolog.Nop())
	col.Now = func() time.Time { return mock.End }

	p := New(col, forecast.NewEngine(prophet.DefaultOptions(), zerolog.Nop()), WithClock(clock))
	out := p.Run(context.Background(), "MOCK", 5)

	require.True(t, out.OK(), "err: %v", out.Err)
	res := out.Result
	assert.Equal(t, "MOCK", res.Symbol)
	require.Len(t, res.Forecast, 5)
	assert.GreaterOrEqual(t, res.Confidence, 60.0)
	assert.LessOrEqual(t, res.Confidence, 95.0)
	for i, pt := range res.Forecast {
		assert.LessOrEqual(t, pt.Lower, pt.Estimate)
		assert.LessOrEqual(t, pt.Estimate, pt.Upper)
		if i > 0 {
			assert.True(t, pt.Time.After(res.Forecast[i-1].Time))
		}
	}
	assert.True(t, res.Forecast[0].Time.After(mock.End.AddDate(0, 0, -3)))
}

func TestRun_TrimsSymbol(t *testing.T) {
	p, f := newStubPipeline()
	out := p.Run(context.Background(), "  AAA\t", 5)
	require.True(t, out.OK(), "err: %v", out.Err)
	assert.Equal(t, "AAA", out.Symbol)
	assert.Equal(t, "AAA", out.Result.Symbol)
	assert.Equal(t, []string{"AAA"}, f.calls)
}

func TestRun_ZeroLatestCloseIsViolation(t *testing.T) {
	bars := make([]model.OHLCV, 0, 121)
	for i := 0; i < 121; i++ {
		bars = append(bars, model.OHLCV{Time: day0.AddDate(0, 0, i), Close: 100 + 0.1*float64(i)})
	}
	bars[len(bars)-1].Close = 0
	mock := &collector.MockFetcher{DailyData: bars}
	col := collector.NewCollector(mock, zerolog.Nop())
	col.Now = func() time.Time { return bars[len(bars)-1].Time }

	p := New(col, &stubForecaster{}, WithClock(clock))
	out := p.Run(context.Background(), "ZERO", 5)

	assert.False(t, out.OK())
	assert.Nil(t, out.Result)
	assert.Equal(t, model.StageShape, out.Stage)
	assert.True(t, out.Violation())
	assert.ErrorIs(t, out.Err, model.ErrPrecondition)
}
