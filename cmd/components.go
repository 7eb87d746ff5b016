// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/browser"
	"github.com/forumsign/forumsign/internal/checkin"
	"github.com/forumsign/forumsign/internal/config"
	"github.com/forumsign/forumsign/internal/history"
	"github.com/forumsign/forumsign/internal/notify"
	"github.com/forumsign/forumsign/internal/report"
)

// components holds the initialized services shared by the run and schedule
// commands.
type components struct {
	Controller *checkin.Controller
	Reporter   *report.Reporter
	History    *history.Store
}

// initializeComponents wires the attempt controller, reporter and history
// store from the loaded configuration.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	factory := func(ctx context.Context) (browser.Driver, error) {
		return browser.NewSession(ctx, cfg.Browser, cfg.Settings.PageLoadTimeout, logger)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Email.Enabled {
		notifier = notify.NewEmailNotifier(cfg.Email, logger)
	}

	return &components{
		Controller: checkin.NewController(cfg, factory, store, logger),
		Reporter:   report.New(notifier, logger),
		History:    store,
	}, nil
}

// Shutdown releases held resources.
func (c *components) Shutdown(logger *zap.Logger) {
	if err := c.History.Close(); err != nil {
		logger.Warn("Failed to close history store", zap.Error(err))
	}
}
