// File: internal/checkin/detector.go
package checkin

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/browser"
)

// WeakIndicatorThreshold is the number of weak votes that together imply a
// completed check-in when no explicit evidence exists. Empirically chosen;
// kept as a named constant so the policy is reproducible and tunable.
const WeakIndicatorThreshold = 3

// Detector classifies the post-action UI surface. No single DOM fragment is
// guaranteed to exist across site revisions, so evidence is treated as
// probabilistic votes rather than one deterministic check.
type Detector struct {
	drv          browser.Driver
	logger       *zap.Logger
	probeTimeout time.Duration
}

// NewDetector creates a Detector bound to one driver session.
func NewDetector(drv browser.Driver, probeTimeout time.Duration, logger *zap.Logger) *Detector {
	return &Detector{
		drv:          drv,
		logger:       logger.Named("detector"),
		probeTimeout: probeTimeout,
	}
}

// Detect navigates to the check-in surface, gathers completion evidence and
// reduces it to the attempt's Outcome. Detection never returns an error: an
// ambiguous surface is a failed outcome with basis "no-signal", not an
// exception. Running Detect twice on an unchanged surface yields the same
// result.
func (d *Detector) Detect(ctx context.Context, out Outcome) Outcome {
	// Idempotent if the attempt already landed there.
	if err := d.drv.Navigate(ctx, SignPageURL); err != nil {
		d.logger.Warn("Check-in page navigation failed, probing current surface", zap.Error(err))
	}

	signals := d.gather(ctx, out.Metadata)
	return reduce(signals, out)
}

// gather runs every evidence probe and collects the signals they produce.
// It does not stop at the first weak match, but an explicit signal
// short-circuits the remaining probes.
func (d *Detector) gather(ctx context.Context, metadata map[string]string) []CompletionSignal {
	var signals []CompletionSignal

	for _, probe := range completionEvidence {
		el, err := d.drv.Find(ctx, probe.Selector, d.probeTimeout)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(el.Text)
		if probe.MetaKey != "" && text != "" {
			metadata[probe.MetaKey] = text
		}

		if strings.Contains(text, rankPhrase) {
			d.logger.Info("Explicit check-in evidence found", zap.String("text", text))
			return append(signals, CompletionSignal{Kind: ExplicitSuccess, Text: text})
		}
		signals = append(signals, CompletionSignal{Kind: WeakIndicator, Text: text})
	}

	// The check-in plugin address itself proves the action state: the page
	// only renders there for a signed-in account viewing its own record.
	if url, err := d.drv.CurrentURL(ctx); err == nil && strings.Contains(url, signPath) {
		d.logger.Debug("Check-in address confirms completion", zap.String("url", url))
		return append(signals, CompletionSignal{Kind: ExplicitSuccess, Text: url})
	}

	for _, sel := range alreadyDoneTargets {
		el, err := d.drv.Find(ctx, sel, d.probeTimeout)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(el.Text)
		d.logger.Info("Already-completed phrasing found", zap.String("text", text))
		signals = append(signals, CompletionSignal{Kind: AlreadyDone, Text: text})
		break
	}

	return signals
}

// reduce folds a signal sequence into the final Outcome. Explicit evidence
// dominates; with none, an already-done signal wins; with neither, three or
// more weak votes together count as success.
func reduce(signals []CompletionSignal, out Outcome) Outcome {
	weak := 0
	for _, sig := range signals {
		switch sig.Kind {
		case ExplicitSuccess:
			out.Succeeded = true
			if strings.Contains(sig.Text, signPath) {
				out.ConfidenceBasis = BasisAddress
			} else {
				out.ConfidenceBasis = BasisExplicit
			}
			return out
		case AlreadyDone:
			out.Succeeded = true
			out.ConfidenceBasis = BasisAlreadyDone
			return out
		case WeakIndicator:
			weak++
		}
	}

	if weak >= WeakIndicatorThreshold {
		out.Succeeded = true
		out.ConfidenceBasis = BasisAggregate
		return out
	}

	out.Succeeded = false
	out.ConfidenceBasis = BasisNoSignal
	return out
}
