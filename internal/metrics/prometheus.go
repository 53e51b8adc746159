package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"PriceProphet/internal/model"
)

// Recorder collects pipeline metrics in its own registry and pushes them to
// a Pushgateway; the process never listens for scrapes.
type Recorder struct {
	registry *prometheus.Registry
	pushURL  string
	job      string

	fetchTotal *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	lastPrice  *prometheus.GaugeVec
	changePct  *prometheus.GaugeVec
	confidence *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// New creates a metrics recorder. An empty pushURL disables Push.
func New(pushURL, job string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		pushURL:  pushURL,
		job:      job,
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prophet_fetch_total",
				Help: "Market data requests by provider and result",
			},
			[]string{"provider", "result"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prophet_outcomes_total",
				Help: "Pipeline outcomes by final stage (done, fetch, fit, shape)",
			},
			[]string{"stage"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prophet_last_price",
				Help: "Last observed close for a symbol",
			},
			[]string{"symbol"},
		),
		changePct: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prophet_forecast_change_pct",
				Help: "Projected percentage change at the end of the horizon",
			},
			[]string{"symbol"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prophet_forecast_confidence",
				Help: "Heuristic confidence score of the latest forecast",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prophet_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch counts one provider request.
func (r *Recorder) RecordFetch(provider string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.fetchTotal.WithLabelValues(provider, result).Inc()
}

// RecordOutcome counts a finished pipeline run by the stage it stopped at.
func (r *Recorder) RecordOutcome(stage model.Stage) {
	r.outcomes.WithLabelValues(string(stage)).Inc()
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordResult exports the headline numbers of a forecast.
func (r *Recorder) RecordResult(res *model.ForecastResult) {
	r.lastPrice.WithLabelValues(res.Symbol).Set(res.CurrentPrice)
	r.changePct.WithLabelValues(res.Symbol).Set(res.PriceChangePct)
	r.confidence.WithLabelValues(res.Symbol).Set(res.Confidence)
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// Push sends all collected metrics to the Pushgateway.
func (r *Recorder) Push() error {
	if r.pushURL == "" {
		return nil
	}
	if err := push.New(r.pushURL, r.job).Gatherer(r.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
