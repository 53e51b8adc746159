package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PriceProphet/internal/notifier"
	"PriceProphet/internal/scheduler"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watchlist on a schedule and answer Telegram commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath, 0)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			log := a.log
			log.Info().Msg("PriceProphet starting...")

			ctx := cmd.Context()
			tn, err := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, log)
			if err != nil {
				return err
			}

			sched := scheduler.NewScheduler(ctx, a.pipeline, tn, a.recorder, log)
			sched.Watchlist = a.cfg.Watchlist
			sched.Horizon = a.cfg.Forecast.Horizon
			sched.Metrics = a.metrics
			if err := sched.Register(a.cfg.Schedule.BatchCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			go tn.StartPolling(ctx, sched.HandleCommand)

			// Optional: run immediately on start
			if os.Getenv("RUN_ON_START") == "true" {
				log.Info().Msg("RUN_ON_START enabled, executing batch now")
				go sched.RunBatchNow()
			}

			log.Info().Str("cron", a.cfg.Schedule.BatchCron).Msg("PriceProphet is running. Press Ctrl+C to stop.")
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping...")
			return nil
		},
	}
}
