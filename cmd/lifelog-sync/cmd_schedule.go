package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mcao2/lifelog-sync/internal/scheduler"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().String("cron", "", "cron expression or descriptor (default from config)")
	scheduleCmd.Flags().Bool("now", false, "also run once immediately")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the sync periodically until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cfg, buildOptions{})
		if err != nil {
			return err
		}

		expr, _ := cmd.Flags().GetString("cron")
		if expr == "" {
			expr = cfg.Schedule
		}
		now, _ := cmd.Flags().GetBool("now")

		opts := runOptions(cfg)
		sched, err := scheduler.New(expr, func(ctx context.Context) error {
			sum, err := a.pipeline.Run(ctx, opts)
			if sum != nil {
				slog.Info("scheduled run finished",
					"relevant", sum.Relevant,
					"items", sum.TotalItems(),
					"created", sum.TotalCreated(),
					"failed", sum.Failed,
				)
			}
			return err
		}, scheduler.WithRunOnStart(now))
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return sched.Run(ctx)
	},
}
