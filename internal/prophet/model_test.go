package prophet

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// trendingSeries is a linear trend with a weekly ripple and deterministic noise.
func trendingSeries(n int) ([]time.Time, []float64) {
	ts := make([]time.Time, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = start.AddDate(0, 0, i)
		weekly := 1 + 0.01*math.Sin(2*math.Pi*float64(i)/7)
		noise := 0.3 * math.Sin(float64(i)*1.7)
		ys[i] = (100+0.5*float64(i))*weekly + noise
	}
	return ts, ys
}

func future(last time.Time, h int) []time.Time {
	out := make([]time.Time, h)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}

func TestFitPredict_TracksTrend(t *testing.T) {
	for _, mode := range []SeasonalityMode{Multiplicative, Additive} {
		opts := DefaultOptions()
		opts.SeasonalityMode = mode
		m, err := New(opts)
		require.NoError(t, err)

		ts, ys := trendingSeries(250)
		require.NoError(t, m.Fit(ts, ys), mode)

		preds, err := m.Predict(future(ts[len(ts)-1], 5))
		require.NoError(t, err)
		require.Len(t, preds, 5)
		for i, p := range preds {
			expected := 100 + 0.5*float64(250+i)
			assert.InDelta(t, expected, p.Yhat, expected*0.05, "%s step %d", mode, i+1)
			assert.LessOrEqual(t, p.Lower, p.Yhat)
			assert.LessOrEqual(t, p.Yhat, p.Upper)
		}
	}
}

func TestPredict_InSampleFitIsClose(t *testing.T) {
	m, err := New(DefaultOptions())
	require.NoError(t, err)
	ts, ys := trendingSeries(120)
	require.NoError(t, m.Fit(ts, ys))

	preds, err := m.Predict(ts)
	require.NoError(t, err)
	for i, p := range preds {
		assert.InDelta(t, ys[i], p.Yhat, ys[i]*0.03)
	}
}

func TestFit_TwoPoints(t *testing.T) {
	m, err := New(DefaultOptions())
	require.NoError(t, err)
	ts := []time.Time{start, start.AddDate(0, 0, 1)}
	require.NoError(t, m.Fit(ts, []float64{10, 11}))

	preds, err := m.Predict(future(ts[1], 3))
	require.NoError(t, err)
	for _, p := range preds {
		assert.LessOrEqual(t, p.Lower, p.Yhat)
		assert.LessOrEqual(t, p.Yhat, p.Upper)
		assert.False(t, math.IsNaN(p.Yhat))
	}
}

func TestFit_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		times  []time.Time
		values []float64
		want   error
	}{
		{"empty", nil, nil, ErrTooFewPoints},
		{"single point", []time.Time{start}, []float64{5}, ErrTooFewPoints},
		{"same timestamp", []time.Time{start, start}, []float64{5, 6}, ErrTooFewPoints},
		{"constant", []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}, []float64{7, 7, 7}, ErrConstant},
		{"nan", []time.Time{start, start.AddDate(0, 0, 1)}, []float64{1, math.NaN()}, ErrNonFinite},
		{"length mismatch", []time.Time{start}, []float64{1, 2}, ErrLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(DefaultOptions())
			require.NoError(t, err)
			assert.ErrorIs(t, m.Fit(tt.times, tt.values), tt.want)
		})
	}
}

func TestPredict_NotFitted(t *testing.T) {
	m, err := New(DefaultOptions())
	require.NoError(t, err)
	_, err = m.Predict([]time.Time{start})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestNew_RejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.SeasonalityMode = "exponential"
	_, err := New(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.IntervalWidth = 1
	_, err = New(opts)
	assert.Error(t, err)
}

func TestFit_NoSeasonality(t *testing.T) {
	opts := DefaultOptions()
	opts.YearlySeasonality, opts.WeeklySeasonality, opts.DailySeasonality = false, false, false
	m, err := New(opts)
	require.NoError(t, err)
	ts, ys := trendingSeries(60)
	require.NoError(t, m.Fit(ts, ys))
	preds, err := m.Predict(future(ts[len(ts)-1], 2))
	require.NoError(t, err)
	assert.Zero(t, preds[0].Seasonal)
}

func TestBandWidensPastTrainingEnd(t *testing.T) {
	opts := DefaultOptions()
	opts.SeasonalityMode = Additive
	opts.YearlySeasonality, opts.WeeklySeasonality, opts.DailySeasonality = false, false, false
	m, err := New(opts)
	require.NoError(t, err)
	ts, ys := trendingSeries(200)
	require.NoError(t, m.Fit(ts, ys))

	preds, err := m.Predict(future(ts[len(ts)-1], 30))
	require.NoError(t, err)
	for i := 1; i < len(preds); i++ {
		prev := preds[i-1].Upper - preds[i-1].Lower
		cur := preds[i].Upper - preds[i].Lower
		assert.GreaterOrEqual(t, cur, prev-1e-9)
	}
}

func TestPlaceChangepoints(t *testing.T) {
	ts := make([]float64, 100)
	for i := range ts {
		ts[i] = float64(i) / 99
	}
	cps := placeChangepoints(ts, 25, 0.8)
	require.Len(t, cps, 25)
	assert.LessOrEqual(t, cps[len(cps)-1], ts[79])
	for i := 1; i < len(cps); i++ {
		assert.Greater(t, cps[i], cps[i-1])
	}
	assert.Empty(t, placeChangepoints(ts[:2], 25, 0.8))
}
