package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PriceProphet/internal/forecast"
	"PriceProphet/internal/notifier"
	"PriceProphet/internal/pipeline"
	"PriceProphet/internal/recorder"
)

const (
	maxSendRetries = 3
	maxHorizon     = 365
	historyLimit   = 5
)

// Runner executes forecasts. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, symbol string, horizon int) pipeline.Outcome
	RunBatch(ctx context.Context, symbols []string, horizon int) []pipeline.Outcome
}

// Sender delivers messages to the configured chat.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Pusher flushes metrics after a batch. *metrics.Recorder implements it.
type Pusher interface {
	Push() error
}

// Scheduler manages the cron batch and Telegram commands.
type Scheduler struct {
	Cron      *cron.Cron
	Runner    Runner
	Notifier  Sender
	Recorder  recorder.Recorder
	Metrics   Pusher
	Watchlist []string
	Horizon   int
	Logger    zerolog.Logger
	Now       func() time.Time
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, sender Sender, rec recorder.Recorder, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: sender,
		Recorder: rec,
		Horizon:  forecast.DefaultHorizon,
		Logger:   logger,
		Now:      time.Now,
		Ctx:      ctx,
	}
}

// Register schedules the watchlist batch.
func (s *Scheduler) Register(batchCron string) error {
	if _, err := s.Cron.AddFunc(batchCron, s.batchTask); err != nil {
		return fmt.Errorf("register batch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Int("symbols", len(s.Watchlist)).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// RunBatchNow executes the batch task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunBatchNow() {
	s.batchTask()
}

func (s *Scheduler) batchTask() {
	s.Logger.Info().Strs("watchlist", s.Watchlist).Msg("running batch task")
	outcomes := s.runWatchlist()
	if outcomes == nil {
		return
	}

	s.trySend(notifier.HTML.FormatBatchReport(outcomes, s.Now()))
	for _, o := range outcomes {
		if o.Violation() {
			s.trySend(notifier.HTML.FormatFailure(o.Symbol, o.Stage, o.Err))
		}
	}
}

func (s *Scheduler) runWatchlist() []pipeline.Outcome {
	if len(s.Watchlist) == 0 {
		s.Logger.Warn().Msg("watchlist is empty, nothing to forecast")
		return nil
	}
	outcomes := s.Runner.RunBatch(s.Ctx, s.Watchlist, s.Horizon)
	s.pushMetrics()
	return outcomes
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText()
	}
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	args := fields[1:]

	switch name {
	case "/forecast":
		if len(args) == 0 {
			return "Usage: /forecast SYMBOL [horizon]"
		}
		horizon := s.Horizon
		if len(args) > 1 {
			h, err := strconv.Atoi(args[1])
			if err != nil || h < 1 || h > maxHorizon {
				return fmt.Sprintf("Horizon must be a number between 1 and %d", maxHorizon)
			}
			horizon = h
		}
		out := s.Runner.Run(ctx, strings.ToUpper(args[0]), horizon)
		s.pushMetrics()
		return notifier.HTML.FormatOutcome(out)
	case "/watchlist":
		outcomes := s.runWatchlist()
		if outcomes == nil {
			return "Watchlist is empty"
		}
		return notifier.HTML.FormatBatchReport(outcomes, s.Now())
	case "/history":
		if len(args) == 0 {
			return "Usage: /history SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		runs, err := s.Recorder.RecentForecasts(symbol, historyLimit)
		if err != nil {
			s.Logger.Error().Err(err).Str("symbol", symbol).Msg("load history")
			return "History is unavailable right now"
		}
		return notifier.HTML.FormatHistory(symbol, runs)
	default:
		return helpText()
	}
}

func helpText() string {
	return "Available commands:\n" +
		"• /forecast SYMBOL [horizon]\n" +
		"• /watchlist\n" +
		"• /history SYMBOL\n" +
		"• /help"
}

func (s *Scheduler) pushMetrics() {
	if s.Metrics == nil {
		return
	}
	if err := s.Metrics.Push(); err != nil {
		s.Logger.Warn().Err(err).Msg("push metrics")
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, maxSendRetries); err != nil {
		s.Logger.Error().Err(err).Msg("send notification")
	}
}
