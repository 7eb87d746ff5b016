// File: internal/checkin/controller.go
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/auth"
	"github.com/forumsign/forumsign/internal/browser"
	"github.com/forumsign/forumsign/internal/config"
	"github.com/forumsign/forumsign/internal/locator"
)

// sessionCloseWait bounds the session release on every exit path, success
// or failure, so a wedged browser cannot hold the attempt open.
const sessionCloseWait = 15 * time.Second

// AttemptRecord is the durable trace of one attempt, written win or lose.
type AttemptRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  bool
	Basis      string
	Reason     string
}

// Recorder persists attempt records. Implemented by the history store; a nop
// recorder serves tests and history-less runs.
type Recorder interface {
	RecordAttempt(rec AttemptRecord) error
}

// NopRecorder discards records.
type NopRecorder struct{}

// RecordAttempt implements Recorder.
func (NopRecorder) RecordAttempt(AttemptRecord) error { return nil }

// Controller sequences one full check-in: acquire a browser session,
// authenticate, activate the check-in control, detect completion, release
// the session. Every failure below it becomes a failed Outcome, never a
// propagated error, so the scheduler's loop is never interrupted.
type Controller struct {
	cfg      *config.Config
	factory  browser.Factory
	recorder Recorder
	logger   *zap.Logger
}

// NewController wires an attempt controller. factory produces one exclusive
// driver session per attempt.
func NewController(cfg *config.Config, factory browser.Factory, recorder Recorder, logger *zap.Logger) *Controller {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Controller{
		cfg:      cfg,
		factory:  factory,
		recorder: recorder,
		logger:   logger.Named("checkin"),
	}
}

// Run executes up to RetryCount attempts, pausing RetryDelay between them,
// and returns the last attempt's Outcome. A configuration error fails fast
// before any session is acquired, is never retried, and is returned as an
// error so callers skip reporting entirely (no attempt was made).
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if err := c.cfg.ValidateCredentials(); err != nil {
		c.logger.Error("Refusing to run with unusable credentials", zap.Error(err))
		return Outcome{}, err
	}

	var out Outcome
	for attempt := 1; attempt <= c.cfg.Settings.RetryCount; attempt++ {
		out = c.runOnce(ctx)
		if out.Succeeded || ctx.Err() != nil {
			return out, nil
		}
		if attempt < c.cfg.Settings.RetryCount {
			c.logger.Warn("Attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max", c.cfg.Settings.RetryCount),
				zap.Duration("delay", c.cfg.Settings.RetryDelay),
			)
			select {
			case <-ctx.Done():
				return out, nil
			case <-time.After(c.cfg.Settings.RetryDelay):
			}
		}
	}
	return out, nil
}

// runOnce performs a single acquire-authenticate-act-detect-release cycle.
// The session is released on every exit path, panics included.
func (c *Controller) runOnce(ctx context.Context) (out Outcome) {
	out = newOutcome(uuid.New().String())
	started := time.Now()
	logger := c.logger.With(zap.String("attemptID", out.AttemptID))

	defer func() {
		if r := recover(); r != nil {
			out.Succeeded = false
			out.ConfidenceBasis = fmt.Sprintf("panic: %v", r)
			logger.Error("Attempt panicked", zap.Any("panic", r))
		}
		rec := AttemptRecord{
			ID:         out.AttemptID,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  out.Succeeded,
			Basis:      out.ConfidenceBasis,
		}
		if !out.Succeeded {
			rec.Reason = out.ConfidenceBasis
		}
		if err := c.recorder.RecordAttempt(rec); err != nil {
			logger.Warn("Failed to record attempt", zap.Error(err))
		}
	}()

	logger.Info("Starting check-in attempt")

	drv, err := c.factory(ctx)
	if err != nil {
		logger.Error("Failed to acquire browser session", zap.Error(err))
		out.ConfidenceBasis = fmt.Sprintf("session acquisition: %v", err)
		return out
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseWait)
		defer cancel()
		if err := drv.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()

	resolver := locator.New(drv, c.cfg.Settings.LoginTimeout, c.cfg.Settings.ProbeTimeout, logger)
	machine := auth.NewMachine(
		auth.Credentials{Username: c.cfg.Login.Username, Password: c.cfg.Login.Password},
		drv, resolver, c.cfg.Settings.SettleDelay, logger,
	)
	if err := machine.Authenticate(ctx); err != nil {
		logger.Error("Login failed", zap.Error(err))
		out.ConfidenceBasis = err.Error()
		return out
	}

	if err := c.activateSignControl(ctx, drv, resolver, logger); err != nil {
		logger.Error("Check-in activation failed", zap.Error(err))
		out.ConfidenceBasis = err.Error()
		return out
	}

	detector := NewDetector(drv, c.cfg.Settings.ProbeTimeout, logger)
	out = detector.Detect(ctx, out)

	logger.Info("Attempt finished",
		zap.Bool("succeeded", out.Succeeded),
		zap.String("basis", out.ConfidenceBasis),
		zap.Duration("elapsed", time.Since(started)),
	)
	return out
}

// activateSignControl navigates to the main site and clicks the check-in
// control. The control not existing is terminal for the attempt.
func (c *Controller) activateSignControl(ctx context.Context, drv browser.Driver, resolver *locator.Resolver, logger *zap.Logger) error {
	if err := drv.Navigate(ctx, MainSiteURL); err != nil {
		return fmt.Errorf("main site navigation: %w", err)
	}

	el, err := resolver.MustResolve(ctx, signButtonTarget)
	if err != nil {
		if errors.Is(err, locator.ErrResolution) {
			return err
		}
		return fmt.Errorf("check-in control: %w", err)
	}
	if err := drv.Click(ctx, el); err != nil {
		return fmt.Errorf("check-in click: %w", err)
	}
	logger.Debug("Check-in control activated")
	return nil
}
