package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceProphet/internal/model"
	"PriceProphet/internal/prophet"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

// tradingSeries builds weekday-only closes with an upward drift.
func tradingSeries(days int) model.Series {
	var s model.Series
	for i := 0; len(s) < days; i++ {
		ts := t0.AddDate(0, 0, i)
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		n := float64(len(s))
		s = append(s, model.Point{Time: ts, Value: 200 + 0.3*n + 2*math.Sin(n/3)})
	}
	return s
}

func newTestEngine() *Engine {
	return NewEngine(prophet.DefaultOptions(), zerolog.Nop())
}

func TestForecast_HorizonContract(t *testing.T) {
	series := tradingSeries(250)
	last := series.Last().Time
	for _, h := range []int{1, 5, 10} {
		points, err := newTestEngine().Forecast(series, h)
		require.NoError(t, err)
		require.Len(t, points, h)
		for k, p := range points {
			assert.Equal(t, last.Add(time.Duration(k+1)*24*time.Hour), p.Time)
			assert.True(t, p.Time.After(last))
			assert.LessOrEqual(t, p.Lower, p.Estimate)
			assert.LessOrEqual(t, p.Estimate, p.Upper)
		}
	}
}

func TestForecast_Failures(t *testing.T) {
	constant := model.Series{
		{Time: t0, Value: 50},
		{Time: t0.AddDate(0, 0, 1), Value: 50},
		{Time: t0.AddDate(0, 0, 2), Value: 50},
	}
	tests := []struct {
		name    string
		series  model.Series
		horizon int
	}{
		{"zero horizon", tradingSeries(30), 0},
		{"negative horizon", tradingSeries(30), -3},
		{"single point", tradingSeries(1), 5},
		{"same timestamps", model.Series{{Time: t0, Value: 1}, {Time: t0, Value: 2}}, 5},
		{"constant series", constant, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := newTestEngine().Forecast(tt.series, tt.horizon)
			assert.Nil(t, points)
			assert.ErrorIs(t, err, model.ErrFitFailure)
		})
	}
}

type stubFitter struct {
	fitErr error
	preds  []prophet.Prediction
}

func (s *stubFitter) Fit([]time.Time, []float64) error { return s.fitErr }

func (s *stubFitter) Predict(times []time.Time) ([]prophet.Prediction, error) {
	if s.preds != nil {
		return s.preds, nil
	}
	out := make([]prophet.Prediction, len(times))
	for i, ts := range times {
		// inverted band to exercise the bound repair
		out[i] = prophet.Prediction{Time: ts, Yhat: 10, Lower: 11, Upper: 9}
	}
	return out, nil
}

func TestForecast_RepairsInvertedBand(t *testing.T) {
	e := &Engine{NewFitter: func() (Fitter, error) { return &stubFitter{}, nil }, Logger: zerolog.Nop()}
	points, err := e.Forecast(tradingSeries(10), 3)
	require.NoError(t, err)
	for _, p := range points {
		assert.Equal(t, 10.0, p.Lower)
		assert.Equal(t, 10.0, p.Upper)
	}
}

func TestForecast_FitterErrorsWrapped(t *testing.T) {
	boom := errors.New("diverged")
	e := &Engine{NewFitter: func() (Fitter, error) { return &stubFitter{fitErr: boom}, nil }, Logger: zerolog.Nop()}
	_, err := e.Forecast(tradingSeries(10), 3)
	assert.ErrorIs(t, err, model.ErrFitFailure)
	assert.ErrorIs(t, err, boom)

	short := &Engine{NewFitter: func() (Fitter, error) {
		return &stubFitter{preds: []prophet.Prediction{{Yhat: 1, Lower: 1, Upper: 1}}}, nil
	}, Logger: zerolog.Nop()}
	_, err = short.Forecast(tradingSeries(10), 3)
	assert.ErrorIs(t, err, model.ErrFitFailure)
}

func TestCadence(t *testing.T) {
	c, err := Cadence(tradingSeries(40))
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, c, "weekend gaps do not change the daily cadence")

	weekly := model.Series{
		{Time: t0, Value: 1},
		{Time: t0.AddDate(0, 0, 7), Value: 2},
		{Time: t0.AddDate(0, 0, 14), Value: 3},
	}
	c, err = Cadence(weekly)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, c)
}
