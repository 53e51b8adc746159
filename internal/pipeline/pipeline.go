// Package pipeline runs fetch, fit and shape for one symbol or a watchlist.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"PriceProphet/internal/calculator"
	"PriceProphet/internal/collector"
	"PriceProphet/internal/forecast"
	"PriceProphet/internal/model"
	"PriceProphet/internal/recorder"
	"PriceProphet/internal/strategy"
)

// Fetcher returns an ascending daily series for a symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, lookback time.Duration) (model.Series, error)
}

// Forecaster projects horizon points past the end of a series.
type Forecaster interface {
	Forecast(series model.Series, horizon int) ([]model.ForecastPoint, error)
}

// Metrics receives per-run observations. *metrics.Recorder implements it.
type Metrics interface {
	RecordFetch(provider string, ok bool)
	RecordOutcome(stage model.Stage)
	RecordLatency(op string, d time.Duration)
	RecordResult(res *model.ForecastResult)
}

// Outcome is the result of one symbol run. Result is nil unless Stage is StageDone.
type Outcome struct {
	Symbol     string                `json:"symbol"`
	Result     *model.ForecastResult `json:"result,omitempty"`
	Indicators *model.Indicators     `json:"indicators,omitempty"`
	Stage      model.Stage           `json:"stage"`
	Err        error                 `json:"-"`
	Elapsed    time.Duration         `json:"elapsed"`
}

// OK reports whether the run produced a result.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// Violation reports whether the run hit a precondition violation, which
// callers must treat as a hard error rather than a skipped symbol.
func (o Outcome) Violation() bool { return errors.Is(o.Err, model.ErrPrecondition) }

// Pipeline wires the collector, the forecast engine and the shaper.
type Pipeline struct {
	fetcher     Fetcher
	forecaster  Forecaster
	recorder    recorder.Recorder
	metrics     Metrics
	logger      zerolog.Logger
	now         func() time.Time
	provider    string
	lookback    time.Duration
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithRecorder persists successful results.
func WithRecorder(r recorder.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithMetrics records fetch, stage and latency observations.
func WithMetrics(m Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithProvider names the data provider in records and metrics.
func WithProvider(name string) Option { return func(p *Pipeline) { p.provider = name } }

// WithLookback sets the history window requested from the provider.
func WithLookback(d time.Duration) Option { return func(p *Pipeline) { p.lookback = d } }

// WithConcurrency bounds how many symbols RunBatch processes at once.
func WithConcurrency(n int) Option { return func(p *Pipeline) { p.concurrency = n } }

// New creates a Pipeline. Without options it logs nothing, records nothing
// and runs batches sequentially.
func New(fetcher Fetcher, forecaster Forecaster, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		forecaster:  forecaster,
		recorder:    recorder.NewNoopRecorder(),
		logger:      zerolog.Nop(),
		now:         time.Now,
		lookback:    collector.DefaultLookback,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Run fetches, fits and shapes one symbol. A zero horizon means forecast.DefaultHorizon.
func (p *Pipeline) Run(ctx context.Context, symbol string, horizon int) Outcome {
	symbol = strings.TrimSpace(symbol)
	if horizon == 0 {
		horizon = forecast.DefaultHorizon
	}
	start := time.Now()
	log := p.logger.With().Str("symbol", symbol).Int("horizon", horizon).Logger()

	out := Outcome{Symbol: symbol}
	finish := func(stage model.Stage, err error) Outcome {
		out.Stage = stage
		out.Err = err
		out.Elapsed = time.Since(start)
		if p.metrics != nil {
			p.metrics.RecordOutcome(stage)
			p.metrics.RecordLatency("run", out.Elapsed)
		}
		return out
	}

	series, err := p.fetcher.Fetch(ctx, symbol, p.lookback)
	if p.metrics != nil {
		p.metrics.RecordFetch(p.provider, err == nil)
	}
	if err != nil {
		log.Warn().Err(err).Str("stage", string(model.StageFetch)).Msg("no data, skipping symbol")
		return finish(model.StageFetch, err)
	}

	ind, indErrs := calculator.Indicators(series)
	for _, e := range indErrs {
		log.Debug().Err(e).Msg("indicator fallback")
	}
	out.Indicators = &ind

	fitStart := time.Now()
	points, err := p.forecaster.Forecast(series, horizon)
	if p.metrics != nil {
		p.metrics.RecordLatency("fit", time.Since(fitStart))
	}
	if err != nil {
		log.Warn().Err(err).Str("stage", string(model.StageFit)).Int("points", len(series)).Msg("forecast failed, skipping symbol")
		return finish(model.StageFit, err)
	}

	res, err := strategy.Shape(symbol, series.Last().Value, points, p.now())
	if err != nil {
		log.Error().Err(err).Str("stage", string(model.StageShape)).Msg("precondition violated")
		return finish(model.StageShape, err)
	}
	out.Result = res

	if p.metrics != nil {
		p.metrics.RecordResult(res)
	}
	if err := p.recorder.RecordForecast(&recorder.ForecastRun{
		Provider: p.provider,
		Horizon:  horizon,
		Result:   res,
	}); err != nil {
		log.Error().Err(err).Msg("record forecast")
	}

	log.Info().
		Float64("current_price", res.CurrentPrice).
		Float64("final", res.Final().Estimate).
		Str("trend", string(res.Trend)).
		Float64("confidence", res.Confidence).
		Msg("forecast complete")
	return finish(model.StageDone, nil)
}

// RunBatch runs every symbol and returns one Outcome per symbol in input order.
// A failing symbol never stops the batch.
func (p *Pipeline) RunBatch(ctx context.Context, symbols []string, horizon int) []Outcome {
	outcomes := make([]Outcome, len(symbols))
	if p.concurrency == 1 {
		for i, s := range symbols {
			outcomes[i] = p.Run(ctx, s, horizon)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, s := range symbols {
		i, s := i, s
		g.Go(func() error {
			outcomes[i] = p.Run(ctx, s, horizon)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Summary counts outcomes by terminal stage.
func Summary(outcomes []Outcome) map[model.Stage]int {
	counts := make(map[model.Stage]int, 4)
	for _, o := range outcomes {
		counts[o.Stage]++
	}
	return counts
}
