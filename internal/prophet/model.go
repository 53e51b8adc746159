package prophet

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTooFewPoints = errors.New("prophet: need at least two distinct timestamps")
	ErrConstant     = errors.New("prophet: series has zero variance")
	ErrNonFinite    = errors.New("prophet: non-finite value")
	ErrSingular     = errors.New("prophet: singular system")
	ErrNotFitted    = errors.New("prophet: model not fitted")
	ErrLength       = errors.New("prophet: times and values differ in length")
)

// ridgeNoise is the nominal observation noise (in scaled units) used to turn
// prior scales into ridge penalties: lambda = (ridgeNoise / priorScale)^2.
const ridgeNoise = 0.01

// unpenalised is the tiny ridge applied to the trend intercept and slope.
const unpenalised = 1e-9

// Prediction is the model output at one timestamp.
type Prediction struct {
	Time     time.Time
	Yhat     float64
	Lower    float64
	Upper    float64
	Trend    float64
	Seasonal float64
}

// Model is a single-use forecaster: Fit once, Predict any number of times.
type Model struct {
	opts          Options
	seasonalities []Seasonality

	start  time.Time
	span   float64 // training span in seconds
	yScale float64

	changepoints []float64
	trendCoef    []float64
	seasonCoef   []float64

	sigma      float64 // residual standard deviation, scaled units
	rate       float64 // changepoints per unit of scaled time
	slopeScale float64 // mean absolute changepoint delta
	z          float64

	fitted bool
}

// New creates an unfitted model.
func New(opts Options) (*Model, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Model{
		opts:          opts,
		seasonalities: opts.seasonalities(),
		z:             distuv.UnitNormal.Quantile(0.5 + opts.IntervalWidth/2),
	}, nil
}

func (m *Model) scaleTime(t time.Time) float64 {
	return t.Sub(m.start).Seconds() / m.span
}

// Fit estimates trend and seasonal coefficients from the observations.
func (m *Model) Fit(times []time.Time, values []float64) error {
	if len(times) != len(values) {
		return ErrLength
	}
	n := len(times)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]].Before(times[idx[b]]) })

	ts := make([]time.Time, n)
	y := make([]float64, n)
	for i, j := range idx {
		ts[i] = times[j]
		y[i] = values[j]
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("%w at %s", ErrNonFinite, ts[i].Format(time.RFC3339))
		}
	}
	if n < 2 || !ts[n-1].After(ts[0]) {
		return ErrTooFewPoints
	}
	if stat.Variance(y, nil) == 0 {
		return ErrConstant
	}

	m.start = ts[0]
	m.span = ts[n-1].Sub(ts[0]).Seconds()
	for _, v := range y {
		m.yScale = math.Max(m.yScale, math.Abs(v))
	}

	tScaled := make([]float64, n)
	days := make([]float64, n)
	yScaled := make([]float64, n)
	for i := range ts {
		tScaled[i] = m.scaleTime(ts[i])
		days[i] = epochDays(ts[i])
		yScaled[i] = y[i] / m.yScale
	}

	m.changepoints = placeChangepoints(tScaled, m.opts.NChangepoints, m.opts.ChangepointRange)
	tw := 2 + len(m.changepoints)
	X := design(n, tw, func(i int, dst []float64) []float64 {
		return trendRow(dst, tScaled[i], m.changepoints)
	})
	trendPenalty := make([]float64, tw)
	trendPenalty[0], trendPenalty[1] = unpenalised, unpenalised
	cpLambda := math.Pow(ridgeNoise/m.opts.ChangepointPriorScale, 2)
	for j := 2; j < tw; j++ {
		trendPenalty[j] = cpLambda
	}

	sw := fourierWidth(m.seasonalities)
	var S *mat.Dense
	var seasonPenalty []float64
	if sw > 0 {
		S = design(n, sw, func(i int, dst []float64) []float64 {
			return fourierRow(dst, days[i], m.seasonalities)
		})
		seasonPenalty = make([]float64, sw)
		sLambda := math.Pow(ridgeNoise/m.opts.SeasonalityPriorScale, 2)
		for j := range seasonPenalty {
			seasonPenalty[j] = sLambda
		}
	}

	multiplicative := m.opts.SeasonalityMode == Multiplicative
	seasonal := make([]float64, n)
	trend := make([]float64, n)
	target := make([]float64, n)
	m.seasonCoef = make([]float64, sw)

	for it := 0; it < m.opts.Iterations; it++ {
		for i := range target {
			if multiplicative {
				target[i] = yScaled[i] / (1 + seasonal[i])
			} else {
				target[i] = yScaled[i] - seasonal[i]
			}
		}
		coef, err := ridge(X, target, trendPenalty)
		if err != nil {
			return err
		}
		m.trendCoef = coef
		mulInto(trend, X, coef)

		if S == nil {
			break
		}
		for i := range target {
			if multiplicative {
				if math.Abs(trend[i]) < 1e-9 {
					return fmt.Errorf("%w: trend vanishes at %s", ErrSingular, ts[i].Format(time.RFC3339))
				}
				target[i] = yScaled[i]/trend[i] - 1
			} else {
				target[i] = yScaled[i] - trend[i]
			}
		}
		coef, err = ridge(S, target, seasonPenalty)
		if err != nil {
			return err
		}
		m.seasonCoef = coef
		mulInto(seasonal, S, coef)
	}

	resid := make([]float64, n)
	for i := range resid {
		resid[i] = yScaled[i] - m.combine(trend[i], seasonal[i])
		if math.IsNaN(resid[i]) || math.IsInf(resid[i], 0) {
			return fmt.Errorf("%w in residuals", ErrNonFinite)
		}
	}
	m.sigma = stat.StdDev(resid, nil)
	if math.IsNaN(m.sigma) {
		m.sigma = 0
	}

	m.rate = float64(len(m.changepoints))
	if len(m.changepoints) > 0 {
		var sum float64
		for _, d := range m.trendCoef[2:] {
			sum += math.Abs(d)
		}
		m.slopeScale = sum / float64(len(m.changepoints))
	}

	m.fitted = true
	return nil
}

func (m *Model) combine(trend, seasonal float64) float64 {
	if m.opts.SeasonalityMode == Multiplicative {
		return trend * (1 + seasonal)
	}
	return trend + seasonal
}

// trendStdDev is the spread added by future slope changes at scaled time t.
// Changepoints arrive at rate r with Laplace(0, b) deltas, so the variance of
// the trend at distance h past the training end is r * 2b^2 * h^3 / 3.
func (m *Model) trendStdDev(t float64) float64 {
	h := t - 1
	if h <= 0 || m.rate == 0 || m.slopeScale == 0 {
		return 0
	}
	return math.Sqrt(m.rate * 2 * m.slopeScale * m.slopeScale * h * h * h / 3)
}

// Predict evaluates the fitted model at the given timestamps.
func (m *Model) Predict(times []time.Time) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]Prediction, len(times))
	row := make([]float64, 0, 2+len(m.changepoints))
	srow := make([]float64, 0, len(m.seasonCoef))
	for i, t := range times {
		ts := m.scaleTime(t)
		row = trendRow(row[:0], ts, m.changepoints)
		trend := dot(row, m.trendCoef)
		seasonal := 0.0
		if len(m.seasonCoef) > 0 {
			srow = fourierRow(srow[:0], epochDays(t), m.seasonalities)
			seasonal = dot(srow, m.seasonCoef)
		}
		yhat := m.combine(trend, seasonal)

		trendSD := m.trendStdDev(ts)
		if m.opts.SeasonalityMode == Multiplicative {
			trendSD *= math.Abs(1 + seasonal)
		}
		half := m.z * math.Sqrt(m.sigma*m.sigma+trendSD*trendSD)

		p := Prediction{
			Time:     t,
			Yhat:     yhat * m.yScale,
			Lower:    (yhat - half) * m.yScale,
			Upper:    (yhat + half) * m.yScale,
			Trend:    trend * m.yScale,
			Seasonal: seasonal,
		}
		if m.opts.SeasonalityMode == Additive {
			p.Seasonal = seasonal * m.yScale
		}
		for _, v := range []float64{p.Yhat, p.Lower, p.Upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w in prediction at %s", ErrNonFinite, t.Format(time.RFC3339))
			}
		}
		out[i] = p
	}
	return out, nil
}

// ridge solves (XᵀX + diag(penalty)) β = Xᵀy.
func ridge(X *mat.Dense, y []float64, penalty []float64) ([]float64, error) {
	_, p := X.Dims()
	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	for j := 0; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+penalty[j])
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), mat.NewVecDense(len(y), y))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	out := make([]float64, p)
	for j := range out {
		out[j] = beta.AtVec(j)
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return nil, fmt.Errorf("%w in coefficients", ErrNonFinite)
		}
	}
	return out, nil
}

func mulInto(dst []float64, X *mat.Dense, coef []float64) {
	var v mat.VecDense
	v.MulVec(X, mat.NewVecDense(len(coef), coef))
	for i := range dst {
		dst[i] = v.AtVec(i)
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
