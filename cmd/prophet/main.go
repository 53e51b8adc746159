package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"PriceProphet/internal/collector"
	"PriceProphet/internal/config"
	"PriceProphet/internal/forecast"
	"PriceProphet/internal/logger"
	"PriceProphet/internal/metrics"
	"PriceProphet/internal/notifier"
	"PriceProphet/internal/pipeline"
	"PriceProphet/internal/recorder"
)

// app is the wired application shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	pipeline *pipeline.Pipeline
	metrics  *metrics.Recorder
	recorder recorder.Recorder
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close recorder")
	}
}

func (a *app) pushMetrics() {
	if err := a.metrics.Push(); err != nil {
		a.log.Warn().Err(err).Msg("push metrics")
	}
}

func newApp(cfgPath string, lookback time.Duration) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	fetcher, err := collector.NewFetcher(cfg.DataSource.Provider, cfg.DataSource.BaseURL,
		cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	log.Info().Str("provider", fetcher.Name()).Msg("data source ready")

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Warn().Err(err).Msg("create database directory")
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	if lookback <= 0 {
		lookback = cfg.DataSource.Lookback
	}
	m := metrics.New(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
	p := pipeline.New(
		collector.NewCollector(fetcher, log),
		forecast.NewEngine(cfg.Forecast.Model, log),
		pipeline.WithLogger(log),
		pipeline.WithRecorder(rec),
		pipeline.WithMetrics(m),
		pipeline.WithProvider(fetcher.Name()),
		pipeline.WithLookback(lookback),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	)
	return &app{cfg: cfg, log: log, pipeline: p, metrics: m, recorder: rec}, nil
}

// jsonOutcome is the machine-readable form of a pipeline outcome.
type jsonOutcome struct {
	pipeline.Outcome
	Error string `json:"error,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toJSON(outs []pipeline.Outcome) []jsonOutcome {
	res := make([]jsonOutcome, len(outs))
	for i, o := range outs {
		res[i] = jsonOutcome{Outcome: o}
		if o.Err != nil {
			res[i].Error = o.Err.Error()
		}
	}
	return res
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "prophet",
		Short:         "Daily price forecasts with trend, confidence and expected change",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultCfg, "path to the YAML config file")

	root.AddCommand(newForecastCmd(&cfgPath), newBatchCmd(&cfgPath), newServeCmd(&cfgPath))
	return root
}

func newForecastCmd(cfgPath *string) *cobra.Command {
	var (
		horizon  int
		lookback time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "forecast SYMBOL",
		Short: "Forecast one symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath, lookback)
			if err != nil {
				return err
			}
			defer a.Close()
			if horizon == 0 {
				horizon = a.cfg.Forecast.Horizon
			}

			out := a.pipeline.Run(cmd.Context(), args[0], horizon)
			a.pushMetrics()

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), toJSON([]pipeline.Outcome{out})[0]); err != nil {
					return err
				}
			} else if out.OK() {
				fmt.Fprintln(cmd.OutOrStdout(), notifier.Plain.FormatOutcome(out))
			}
			if !out.OK() {
				return errors.New(notifier.Plain.FormatFailure(out.Symbol, out.Stage, out.Err))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&horizon, "horizon", "n", 0, "number of periods to forecast (default from config)")
	cmd.Flags().DurationVar(&lookback, "lookback", 0, "history window to fetch, e.g. 8760h (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outcome as JSON")
	return cmd
}

func newBatchCmd(cfgPath *string) *cobra.Command {
	var (
		horizon int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "batch [SYMBOL...]",
		Short: "Forecast several symbols, skipping failures (defaults to the watchlist)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			if horizon == 0 {
				horizon = a.cfg.Forecast.Horizon
			}
			symbols := args
			if len(symbols) == 0 {
				symbols = a.cfg.Watchlist
			}
			if len(symbols) == 0 {
				return errors.New("no symbols given and watchlist is empty")
			}

			outs := a.pipeline.RunBatch(cmd.Context(), symbols, horizon)
			a.pushMetrics()

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), toJSON(outs)); err != nil {
					return err
				}
			} else {
				for _, o := range outs {
					if o.OK() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", notifier.Plain.FormatOutcome(o))
					} else {
						fmt.Fprintln(cmd.ErrOrStderr(), notifier.Plain.FormatOutcome(o))
					}
				}
			}

			for _, o := range outs {
				if o.Violation() {
					return fmt.Errorf("precondition violated for %s: %w", o.Symbol, o.Err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&horizon, "horizon", "n", 0, "number of periods to forecast (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print outcomes as a JSON array")
	return cmd
}

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
