// File: cmd/notifytest.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/notify"
	"github.com/forumsign/forumsign/internal/observability"
)

// newNotifyTestCmd creates the `notify-test` command, which sends one test
// email so operators can verify their SMTP settings.
func newNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Sends a test email using the configured SMTP settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			if !cfg.Email.Enabled {
				return fmt.Errorf("email notification is disabled in the configuration (email.enabled)")
			}

			notifier := notify.NewEmailNotifier(cfg.Email, logger)
			if err := notifier.SendTest(); err != nil {
				return err
			}

			logger.Info("Test email sent", zap.String("to", cfg.Email.ReceiverEmail))
			fmt.Printf("Test email sent to %s\n", cfg.Email.ReceiverEmail)
			return nil
		},
	}
}
