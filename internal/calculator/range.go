package calculator

import (
	"errors"
	"math"

	"PriceProphet/internal/model"
)

// TradingDaysPerYear is the window used for 52-week statistics.
const TradingDaysPerYear = 252

// Calculate52WeekRange scans the most recent 252 closes and returns the high and low.
func Calculate52WeekRange(series model.Series) (high, low float64, err error) {
	if len(series) == 0 {
		return 0, 0, errors.New("empty series")
	}
	start := len(series) - TradingDaysPerYear
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range series[start:] {
		high = math.Max(high, p.Value)
		low = math.Min(low, p.Value)
	}
	return high, low, nil
}

// Calculate52WeekPosition returns where the current price sits within the 52-week range (0.0~1.0).
func Calculate52WeekPosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// Indicators computes the summary indicators for a series, falling back to
// neutral values where the history is too short.
func Indicators(series model.Series) (model.Indicators, []error) {
	var (
		ind  model.Indicators
		errs []error
	)
	if len(series) == 0 {
		return ind, []error{errors.New("empty series")}
	}
	current := series.Last().Value

	if ma, err := CalculateMA50(series); err != nil {
		errs = append(errs, err)
		ind.MA50 = current
	} else {
		ind.MA50 = ma
	}
	if ma, err := CalculateMA200(series); err != nil {
		errs = append(errs, err)
		ind.MA200 = current
	} else {
		ind.MA200 = ma
	}
	if rsi, err := CalculateRSI(series, 14); err != nil {
		errs = append(errs, err)
		ind.RSI14 = 50
	} else {
		ind.RSI14 = rsi
	}
	if h, l, err := Calculate52WeekRange(series); err != nil {
		errs = append(errs, err)
		ind.High52w, ind.Low52w = current, current
	} else {
		ind.High52w, ind.Low52w = h, l
	}
	if pos, err := Calculate52WeekPosition(current, ind.High52w, ind.Low52w); err != nil {
		errs = append(errs, err)
		ind.Position52w = 0.5
	} else {
		ind.Position52w = pos
	}
	return ind, errs
}
