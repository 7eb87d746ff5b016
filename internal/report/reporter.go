// File: internal/report/reporter.go
package report

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/checkin"
	"github.com/forumsign/forumsign/internal/notify"
)

// Reporter is a pure adapter: it turns an attempt Outcome into a
// human-readable summary and forwards it to the Notifier exactly once per
// attempt. Whether anything is actually sent is the Notifier's decision.
type Reporter struct {
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Reporter bound to one Notifier.
func New(notifier notify.Notifier, logger *zap.Logger) *Reporter {
	return &Reporter{
		notifier: notifier,
		logger:   logger.Named("report"),
		now:      time.Now,
	}
}

// Report packages the outcome and hands it off. Notifier errors are logged
// and swallowed; a failed delivery never fails the attempt.
func (r *Reporter) Report(out checkin.Outcome) {
	result := notify.Result{
		Succeeded: out.Succeeded,
		Summary:   Summarize(out),
		Metadata:  out.Metadata,
		When:      r.now(),
	}

	r.logger.Info("Reporting outcome",
		zap.String("attemptID", out.AttemptID),
		zap.Bool("succeeded", out.Succeeded),
		zap.String("basis", out.ConfidenceBasis),
	)
	if err := r.notifier.Notify(result); err != nil {
		r.logger.Warn("Notifier delivery failed", zap.Error(err))
	}
}

// Summarize renders a one-line human-readable account of the outcome.
func Summarize(out checkin.Outcome) string {
	if out.Succeeded {
		if rank, ok := out.Metadata["rank"]; ok {
			return fmt.Sprintf("Daily check-in completed (%s). Basis: %s.", rank, out.ConfidenceBasis)
		}
		return fmt.Sprintf("Daily check-in completed. Basis: %s.", out.ConfidenceBasis)
	}
	return fmt.Sprintf("Daily check-in did NOT complete. Basis: %s. Manual inspection recommended.", out.ConfidenceBasis)
}
