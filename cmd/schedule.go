// File: cmd/schedule.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/config"
	"github.com/forumsign/forumsign/internal/observability"
	"github.com/forumsign/forumsign/internal/scheduler"
)

// newScheduleCmd creates the `schedule` command: the blocking daily loop.
func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Runs the daily check-in scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Surface unusable credentials at startup instead of at the
			// first 3 AM fire.
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(logger)

			tod, err := config.ParseTimeOfDay(cfg.Schedule.SignTime)
			if err != nil {
				return fmt.Errorf("schedule.sign_time: %w", err)
			}

			sched := scheduler.New(
				components.Controller,
				components.Reporter,
				components.History,
				scheduler.SystemClock(),
				cfg.Schedule.PollInterval,
				logger,
			)
			if err := sched.Arm(scheduler.Entry{TimeOfDay: tod, Enabled: cfg.Schedule.Enabled}); err != nil {
				if errors.Is(err, scheduler.ErrDisabled) {
					return fmt.Errorf("scheduling is disabled in the configuration (schedule.enabled)")
				}
				return err
			}

			fmt.Printf("Scheduler armed. Next check-in: %s\n", sched.NextFire().Format("2006-01-02 15:04"))
			logger.Info("Scheduler running, press Ctrl+C to stop",
				zap.Time("nextFire", sched.NextFire()),
			)

			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
