package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceProphet/internal/model"
)

func seriesOf(values ...float64) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(model.Series, len(values))
	for i, v := range values {
		s[i] = model.Point{Time: start.AddDate(0, 0, i), Value: v}
	}
	return s
}

func ramp(n int, from, step float64) model.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = from + step*float64(i)
	}
	return seriesOf(values...)
}

func TestCalculateSMA(t *testing.T) {
	v, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.5, v)

	_, err = CalculateSMA([]float64{1, 2}, 3)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestCalculateRSI(t *testing.T) {
	tests := []struct {
		name   string
		series model.Series
		want   float64
	}{
		{"only gains", ramp(30, 100, 1), 100},
		{"only losses", ramp(30, 100, -1), 0},
		{"insufficient data", ramp(10, 100, 1), 50},
		{"alternating", seriesOf(10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := CalculateRSI(tt.series, 14)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rsi, 1e-9)
		})
	}

	_, err := CalculateRSI(ramp(30, 100, 1), 0)
	assert.Error(t, err)
}

func TestCalculate52WeekRange_UsesLastYear(t *testing.T) {
	s := ramp(300, 1, 1) // 1..300
	high, low, err := Calculate52WeekRange(s)
	require.NoError(t, err)
	assert.Equal(t, 300.0, high)
	assert.Equal(t, 49.0, low)

	_, _, err = Calculate52WeekRange(nil)
	assert.Error(t, err)
}

func TestCalculate52WeekPosition(t *testing.T) {
	pos, err := Calculate52WeekPosition(75, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.5, pos)

	pos, _ = Calculate52WeekPosition(120, 100, 50)
	assert.Equal(t, 1.0, pos)
	pos, _ = Calculate52WeekPosition(10, 10, 10)
	assert.Equal(t, 0.5, pos)
	_, err = Calculate52WeekPosition(10, 5, 50)
	assert.Error(t, err)
}

func TestIndicators(t *testing.T) {
	ind, errs := Indicators(ramp(250, 100, 1))
	assert.Empty(t, errs)
	assert.InDelta(t, 324.5, ind.MA50, 1e-9)
	assert.InDelta(t, 249.5, ind.MA200, 1e-9)
	assert.Equal(t, 100.0, ind.RSI14)
	assert.Equal(t, 349.0, ind.High52w)
	assert.Equal(t, 100.0, ind.Low52w)
	assert.Equal(t, 1.0, ind.Position52w)

	short, errs := Indicators(seriesOf(10, 11, 12))
	assert.Len(t, errs, 2, "both moving averages fall back")
	assert.Equal(t, 12.0, short.MA50)
	assert.Equal(t, 12.0, short.MA200)
	assert.Equal(t, 50.0, short.RSI14)

	_, errs = Indicators(nil)
	assert.NotEmpty(t, errs)
}
