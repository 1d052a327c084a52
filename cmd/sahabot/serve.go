package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ergcontrols/sahabot/internal/adapter"
	"github.com/ergcontrols/sahabot/internal/config"
	"github.com/ergcontrols/sahabot/internal/quality"
	"github.com/ergcontrols/sahabot/internal/reports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat adapters and scheduled jobs",
	Long:  `Runs the enabled Slack and Telegram adapters plus the conversation sweeper and the scheduled workbook reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var adapters []adapter.Adapter
		if cfg.Adapters.Slack.Enabled {
			if cfg.Adapters.Slack.BotToken == "" || cfg.Adapters.Slack.SigningSecret == "" {
				return fmt.Errorf("slack adapter enabled but bot_token or signing_secret is missing")
			}
			adapters = append(adapters, adapter.NewSlackAdapter(
				cfg.Adapters.Slack.Port,
				cfg.Adapters.Slack.SigningSecret,
				cfg.Adapters.Slack.BotToken,
				eng.ctrl,
			))
		}
		if cfg.Adapters.Telegram.Enabled {
			if cfg.Adapters.Telegram.BotToken == "" {
				return fmt.Errorf("telegram adapter enabled but bot_token is missing")
			}
			adapters = append(adapters, adapter.NewTelegramAdapter(
				cfg.Adapters.Telegram.BotToken,
				eng.ctrl,
				cfg.Adapters.Telegram.UpdateTimeout,
			))
		}
		if len(adapters) == 0 {
			slog.Warn("No chat adapters enabled, running scheduled jobs only")
		}

		mgr := adapter.NewManager(adapters...)
		go mgr.Start(ctx)

		sched, err := buildScheduler(ctx, cfg, eng, mgr)
		if err != nil {
			return err
		}
		sched.Start()

		slog.Info("Sahabot running",
			"adapters", len(adapters),
			"workbook", cfg.Workbook.Path,
			"classifier", cfg.Classifier.Provider)

		<-ctx.Done()
		slog.Info("Shutting down...")

		shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
		if err != nil {
			shutdownTimeout = 0
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		mgr.Stop(shutdownCtx)
		<-sched.Stop().Done()
		return nil
	},
}

// buildScheduler registers the periodic jobs: conversation sweep, dedup
// token pruning, and the workbook reports when enabled.
func buildScheduler(ctx context.Context, cfg *config.Config, eng *engine, mgr *adapter.Manager) (*cron.Cron, error) {
	sched := cron.New()

	if _, err := sched.AddFunc(cfg.Conversation.SweepSchedule, func() {
		if n := eng.convs.Sweep(); n > 0 {
			slog.Info("Swept expired conversations", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid conversation.sweep_schedule: %w", err)
	}

	if _, err := sched.AddFunc("@hourly", func() {
		if n := eng.dedup.Prune(); n > 0 {
			slog.Debug("Pruned expired dedup tokens", "count", n)
		}
		if err := eng.dedup.Save(); err != nil {
			slog.Warn("Failed to save idempotency store", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if cfg.Reports.Enabled {
		poster := reportPoster(mgr)
		reporter := reports.New(quality.NewScanner(eng.wb, quality.Options{}), poster, cfg.Reports.Channel)

		if _, err := sched.AddFunc(cfg.Reports.WeeklySchedule, func() {
			reporter.PostWeekly(ctx)
		}); err != nil {
			return nil, fmt.Errorf("invalid reports.weekly_schedule: %w", err)
		}
		if _, err := sched.AddFunc(cfg.Reports.QualitySchedule, func() {
			reporter.PostAging(ctx)
		}); err != nil {
			return nil, fmt.Errorf("invalid reports.quality_schedule: %w", err)
		}
	}

	return sched, nil
}

// reportPoster picks the first running adapter as the report channel.
func reportPoster(mgr *adapter.Manager) reports.Poster {
	if adapters := mgr.Adapters(); len(adapters) > 0 {
		return adapters[0]
	}
	return adapter.NewNullAdapter()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("adapters.slack.port", config.DefaultSlackPort, "Slack events listener port")
}
