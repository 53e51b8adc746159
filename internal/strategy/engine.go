package strategy

import (
	"fmt"
	"math"
	"time"

	"PriceProphet/internal/model"
)

// Confidence bounds and the base added to the absolute percentage move.
const (
	MinConfidence  = 60.0
	MaxConfidence  = 95.0
	BaseConfidence = 70.0
)

// TrendFor is BULLISH only when the final estimate is strictly above the last price.
func TrendFor(last, final float64) model.Trend {
	if final > last {
		return model.TrendBullish
	}
	return model.TrendBearish
}

// PercentChange is the signed move from last to final, in percent.
func PercentChange(last, final float64) float64 {
	return (final - last) / last * 100
}

// Confidence maps a percentage move to a heuristic score in [60, 95].
// It is not a statistical confidence level.
func Confidence(changePct float64) float64 {
	return math.Min(MaxConfidence, math.Max(MinConfidence, math.Abs(changePct)+BaseConfidence))
}

// Shape packages a forecast into a ForecastResult. Only the final forecast
// point drives the trend call. now is the generation timestamp.
func Shape(symbol string, last float64, points []model.ForecastPoint, now time.Time) (*model.ForecastResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no forecast points for %s", model.ErrPrecondition, symbol)
	}
	if last == 0 || math.IsNaN(last) || math.IsInf(last, 0) {
		return nil, fmt.Errorf("%w: last observed value %v for %s", model.ErrPrecondition, last, symbol)
	}

	forecast := make([]model.ForecastPoint, len(points))
	copy(forecast, points)
	final := forecast[len(forecast)-1].Estimate
	change := PercentChange(last, final)

	return &model.ForecastResult{
		Symbol:         symbol,
		CurrentPrice:   last,
		Forecast:       forecast,
		Trend:          TrendFor(last, final),
		Confidence:     Confidence(change),
		PriceChangePct: change,
		GeneratedAt:    now,
	}, nil
}
