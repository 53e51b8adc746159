package model

import "time"

// Trend is the directional call derived from a forecast.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
)

// ForecastPoint is a projected value with its uncertainty band.
// Lower <= Estimate <= Upper always holds.
type ForecastPoint struct {
	Time     time.Time `json:"ds"`
	Estimate float64   `json:"yhat"`
	Lower    float64   `json:"yhat_lower"`
	Upper    float64   `json:"yhat_upper"`
}

// ForecastResult is the output of one successful fetch, fit and shape run.
type ForecastResult struct {
	Symbol         string          `json:"symbol"`
	CurrentPrice   float64         `json:"current_price"`
	Forecast       []ForecastPoint `json:"forecast_data"`
	Trend          Trend           `json:"trend"`
	Confidence     float64         `json:"confidence"`
	PriceChangePct float64         `json:"price_change_pct"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Final returns the last forecast point.
func (r *ForecastResult) Final() ForecastPoint {
	return r.Forecast[len(r.Forecast)-1]
}
