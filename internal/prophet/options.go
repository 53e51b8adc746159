// Package prophet fits a piecewise-linear trend with Fourier seasonalities
// and extrapolates it with an uncertainty band.
package prophet

import "fmt"

// SeasonalityMode selects how seasonal components combine with the trend.
type SeasonalityMode string

const (
	Additive       SeasonalityMode = "additive"
	Multiplicative SeasonalityMode = "multiplicative"
)

// Seasonality is a Fourier series with the given period in days.
type Seasonality struct {
	Name   string
	Period float64
	Order  int
}

// Options configures a Model. Zero values are not usable; start from DefaultOptions.
type Options struct {
	SeasonalityMode SeasonalityMode `yaml:"seasonality_mode" default:"multiplicative" validate:"oneof=additive multiplicative"`

	YearlySeasonality bool `yaml:"yearly_seasonality" default:"true"`
	WeeklySeasonality bool `yaml:"weekly_seasonality" default:"true"`
	DailySeasonality  bool `yaml:"daily_seasonality" default:"true"`
	YearlyOrder       int  `yaml:"yearly_order" default:"10" validate:"gte=1"`
	WeeklyOrder       int  `yaml:"weekly_order" default:"3" validate:"gte=1"`
	DailyOrder        int  `yaml:"daily_order" default:"4" validate:"gte=1"`

	NChangepoints         int     `yaml:"n_changepoints" default:"25" validate:"gte=0"`
	ChangepointRange      float64 `yaml:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" default:"0.05" validate:"gt=0"`
	SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale" default:"10" validate:"gt=0"`

	IntervalWidth float64 `yaml:"interval_width" default:"0.8" validate:"gt=0,lt=1"`
	// Iterations is the number of trend/seasonality alternations in multiplicative mode.
	Iterations int `yaml:"iterations" default:"4" validate:"gte=1"`
}

// DefaultOptions mirrors the stock configuration: multiplicative seasonality
// with yearly, weekly and daily components enabled.
func DefaultOptions() Options {
	return Options{
		SeasonalityMode:       Multiplicative,
		YearlySeasonality:     true,
		WeeklySeasonality:     true,
		DailySeasonality:      true,
		YearlyOrder:           10,
		WeeklyOrder:           3,
		DailyOrder:            4,
		NChangepoints:         25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		IntervalWidth:         0.8,
		Iterations:            4,
	}
}

func (o Options) validate() error {
	if o.SeasonalityMode != Additive && o.SeasonalityMode != Multiplicative {
		return fmt.Errorf("unknown seasonality mode %q", o.SeasonalityMode)
	}
	if o.ChangepointPriorScale <= 0 || o.SeasonalityPriorScale <= 0 {
		return fmt.Errorf("prior scales must be positive")
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		return fmt.Errorf("changepoint range must be in (0, 1]")
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return fmt.Errorf("interval width must be in (0, 1)")
	}
	if o.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1")
	}
	return nil
}

func (o Options) seasonalities() []Seasonality {
	var out []Seasonality
	if o.YearlySeasonality && o.YearlyOrder > 0 {
		out = append(out, Seasonality{Name: "yearly", Period: 365.25, Order: o.YearlyOrder})
	}
	if o.WeeklySeasonality && o.WeeklyOrder > 0 {
		out = append(out, Seasonality{Name: "weekly", Period: 7, Order: o.WeeklyOrder})
	}
	if o.DailySeasonality && o.DailyOrder > 0 {
		out = append(out, Seasonality{Name: "daily", Period: 1, Order: o.DailyOrder})
	}
	return out
}
