package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"PriceProphet/internal/model"
	"PriceProphet/internal/prophet"
)

// DefaultHorizon is the number of periods projected when none is given.
const DefaultHorizon = 5

// Fitter is the modelling dependency: fit on history, predict at new times.
type Fitter interface {
	Fit(times []time.Time, values []float64) error
	Predict(times []time.Time) ([]prophet.Prediction, error)
}

// FitterFactory returns a fresh, unfitted model for every forecast.
type FitterFactory func() (Fitter, error)

// Engine fits a seasonal regression to a series and extrapolates it.
type Engine struct {
	NewFitter FitterFactory
	Logger    zerolog.Logger
}

// NewEngine creates an Engine backed by the prophet model with the given options.
func NewEngine(opts prophet.Options, logger zerolog.Logger) *Engine {
	return &Engine{
		NewFitter: func() (Fitter, error) { return prophet.New(opts) },
		Logger:    logger,
	}
}

// Forecast returns exactly horizon points following the last observation at
// the series' own cadence. Every failure wraps model.ErrFitFailure.
func (e *Engine) Forecast(series model.Series, horizon int) ([]model.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", model.ErrFitFailure, horizon)
	}
	if len(series) < 2 {
		return nil, fmt.Errorf("%w: need at least two points, got %d", model.ErrFitFailure, len(series))
	}

	cadence, err := Cadence(series)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFitFailure, err)
	}

	m, err := e.NewFitter()
	if err != nil {
		return nil, fmt.Errorf("%w: build model: %w", model.ErrFitFailure, err)
	}
	if err := m.Fit(series.Times(), series.Values()); err != nil {
		return nil, fmt.Errorf("%w: fit: %w", model.ErrFitFailure, err)
	}

	times := FutureTimes(series.Last().Time, cadence, horizon)
	preds, err := m.Predict(times)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %w", model.ErrFitFailure, err)
	}
	if len(preds) != horizon {
		return nil, fmt.Errorf("%w: model returned %d predictions, want %d", model.ErrFitFailure, len(preds), horizon)
	}

	points := make([]model.ForecastPoint, horizon)
	for i, p := range preds {
		lower, upper := p.Lower, p.Upper
		if lower > p.Yhat {
			lower = p.Yhat
		}
		if upper < p.Yhat {
			upper = p.Yhat
		}
		points[i] = model.ForecastPoint{
			Time:     times[i],
			Estimate: p.Yhat,
			Lower:    lower,
			Upper:    upper,
		}
	}

	e.Logger.Debug().
		Int("points", len(series)).
		Int("horizon", horizon).
		Dur("cadence", cadence).
		Float64("final", points[horizon-1].Estimate).
		Msg("forecast complete")
	return points, nil
}

// Cadence is the median spacing between consecutive observations.
func Cadence(series model.Series) (time.Duration, error) {
	gaps := make([]time.Duration, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if d := series[i].Time.Sub(series[i-1].Time); d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return 0, fmt.Errorf("fewer than two distinct timestamps")
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2], nil
}

// FutureTimes returns last + k*cadence for k = 1..horizon.
func FutureTimes(last time.Time, cadence time.Duration, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	for k := 1; k <= horizon; k++ {
		out[k-1] = last.Add(time.Duration(k) * cadence)
	}
	return out
}
