// File: internal/locator/locator.go
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/browser"
)

// ErrResolution marks a mandatory target that could not be found within any
// of its fallback strategies. Fatal for the current attempt.
var ErrResolution = errors.New("resolution failure")

// Target is one logical UI element together with its ordered fallback
// strategies. The target site's markup is not contractually stable, so a
// single selector is insufficient; order encodes "most specific first".
type Target struct {
	// Name identifies the target in logs and failure reasons.
	Name string
	// Strategies are tried in declaration order; the first one that yields
	// an existing, interactable element wins. Must be non-empty.
	Strategies []browser.Selector
}

// Resolver tries a Target's strategies in order against the current page.
type Resolver struct {
	drv    browser.Driver
	logger *zap.Logger

	// firstTimeout bounds the first strategy; probeTimeout bounds every
	// fallback after it, keeping the cascade's worst-case latency bounded.
	firstTimeout time.Duration
	probeTimeout time.Duration
}

// New creates a Resolver bound to one driver session.
func New(drv browser.Driver, firstTimeout, probeTimeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		drv:          drv,
		logger:       logger.Named("locator"),
		firstTimeout: firstTimeout,
		probeTimeout: probeTimeout,
	}
}

// Resolve returns the first interactable element any of the target's
// strategies yields. Exhaustion returns browser.ErrNotFound; callers with a
// mandatory target wrap it via MustResolve. Driver-level failures other than
// a miss abort the cascade immediately.
func (r *Resolver) Resolve(ctx context.Context, t Target) (*browser.Element, error) {
	return r.resolve(ctx, t, r.firstTimeout)
}

// Probe is Resolve with the short probe timeout for every strategy, the
// first included. Used for optional targets whose absence is the normal
// case, and for poll ticks whose wait budget must stay small.
func (r *Resolver) Probe(ctx context.Context, t Target) (*browser.Element, error) {
	return r.resolve(ctx, t, r.probeTimeout)
}

func (r *Resolver) resolve(ctx context.Context, t Target, firstTimeout time.Duration) (*browser.Element, error) {
	if len(t.Strategies) == 0 {
		return nil, fmt.Errorf("target %s has no strategies", t.Name)
	}

	for i, sel := range t.Strategies {
		timeout := r.probeTimeout
		if i == 0 {
			timeout = firstTimeout
		}

		el, err := r.drv.Find(ctx, sel, timeout)
		if err == nil {
			if i > 0 {
				r.logger.Debug("Target resolved via fallback strategy",
					zap.String("target", t.Name),
					zap.Int("strategy", i),
					zap.String("expr", sel.Expr),
				)
			}
			return el, nil
		}
		if errors.Is(err, browser.ErrNotFound) {
			continue
		}
		return nil, fmt.Errorf("target %s: %w", t.Name, err)
	}

	return nil, fmt.Errorf("target %s: %w", t.Name, browser.ErrNotFound)
}

// MustResolve is Resolve for mandatory targets: a miss is promoted to
// ErrResolution, which is fatal for the attempt.
func (r *Resolver) MustResolve(ctx context.Context, t Target) (*browser.Element, error) {
	el, err := r.Resolve(ctx, t)
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResolution, t.Name)
		}
		return nil, err
	}
	return el, nil
}
