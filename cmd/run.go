// File: cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/observability"
	"github.com/forumsign/forumsign/internal/report"
)

// newRunCmd creates the `run` command: one immediate check-in attempt.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Performs one check-in attempt immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(logger)

			out, err := components.Controller.Run(ctx)
			if err != nil {
				// Configuration problem: no attempt was made, nothing to
				// report.
				return err
			}
			components.Reporter.Report(out)

			fmt.Println(report.Summarize(out))
			if !out.Succeeded {
				logger.Warn("Check-in did not complete", zap.String("basis", out.ConfidenceBasis))
				return fmt.Errorf("check-in failed: %s", out.ConfidenceBasis)
			}
			return nil
		},
	}
}
