package prophet

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

const secondsPerDay = 86400.0

// epochDays is the absolute time in days, so seasonal phases do not depend on the training window.
func epochDays(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9 / secondsPerDay
}

// fourierRow appends sin/cos pairs for every seasonality at absolute day d.
func fourierRow(dst []float64, d float64, seasonalities []Seasonality) []float64 {
	for _, s := range seasonalities {
		for k := 1; k <= s.Order; k++ {
			x := 2 * math.Pi * float64(k) * d / s.Period
			dst = append(dst, math.Sin(x), math.Cos(x))
		}
	}
	return dst
}

func fourierWidth(seasonalities []Seasonality) int {
	n := 0
	for _, s := range seasonalities {
		n += 2 * s.Order
	}
	return n
}

// trendRow is [1, t, (t-c1)+, ..., (t-cn)+] for scaled time t.
func trendRow(dst []float64, t float64, changepoints []float64) []float64 {
	dst = append(dst, 1, t)
	for _, c := range changepoints {
		dst = append(dst, math.Max(0, t-c))
	}
	return dst
}

// placeChangepoints spreads up to n changepoints uniformly over the first
// rng fraction of the (sorted, scaled) training times.
func placeChangepoints(ts []float64, n int, rng float64) []float64 {
	hist := int(math.Floor(float64(len(ts)) * rng))
	if n > hist-1 {
		n = hist - 1
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(hist-1) / float64(n)))
		c := ts[idx]
		if len(cps) > 0 && c <= cps[len(cps)-1] {
			continue
		}
		cps = append(cps, c)
	}
	return cps
}

// design builds a dense matrix from per-row feature builders.
func design(rows int, width int, fill func(i int, dst []float64) []float64) *mat.Dense {
	data := make([]float64, 0, rows*width)
	for i := 0; i < rows; i++ {
		data = fill(i, data)
	}
	return mat.NewDense(rows, width, data)
}
