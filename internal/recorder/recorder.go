package recorder

import (
	"time"

	"PriceProphet/internal/model"
)

// ForecastRun is one successful pipeline result plus its run metadata.
type ForecastRun struct {
	RunID    string // generated when empty
	Provider string
	Horizon  int
	Result   *model.ForecastResult
}

// RunSummary is a stored run as read back for history queries.
type RunSummary struct {
	RunID          string
	Symbol         string
	Provider       string
	CurrentPrice   float64
	FinalEstimate  float64
	Trend          model.Trend
	Confidence     float64
	PriceChangePct float64
	GeneratedAt    time.Time
}

// Recorder persists forecast history for later analysis.
type Recorder interface {
	RecordForecast(run *ForecastRun) error
	RecentForecasts(symbol string, limit int) ([]RunSummary, error)
	Close() error
}
