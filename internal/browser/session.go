// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/forumsign/forumsign/internal/config"
)

// postLoadWait lets async page work settle after navigation reports ready.
const postLoadWait = 2 * time.Second

// closeWait bounds how long Close waits for the browser process to exit.
const closeWait = 10 * time.Second

// Session drives one headless browser process with a single tab. It
// implements Driver. A Session is exclusively owned by one attempt and must
// be closed on every exit path.
type Session struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	navigationTimeout time.Duration

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	closed bool
	mu     sync.Mutex
}

var _ Driver = (*Session)(nil)

// NewSession launches the browser process, opens a tab and verifies it is
// responsive. The returned session is ready for navigation.
func NewSession(ctx context.Context, cfg config.BrowserConfig, navigationTimeout time.Duration, logger *zap.Logger) (*Session, error) {
	s := &Session{
		logger:            logger.Named("browser"),
		cfg:               cfg,
		navigationTimeout: navigationTimeout,
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.buildAllocatorOptions()...)
	s.allocCtx = allocCtx
	s.allocCancel = allocCancel

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel

	// Run a trivial task to confirm the browser started and is responsive.
	probeCtx, cancelProbe := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancelProbe()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.tabCancel()
		s.allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.logger.Info("Browser session launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("width", cfg.WindowWidth),
		zap.Int("height", cfg.WindowHeight),
	)
	return s, nil
}

// buildAllocatorOptions assembles the flags for the browser instance.
func (s *Session) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		// The default set advertises automation; a later Flag wins, so
		// override it off.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(s.cfg.WindowWidth, s.cfg.WindowHeight),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// byOption maps a Selector to the chromedp query mechanism.
func byOption(sel Selector) chromedp.QueryOption {
	if sel.By == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads a URL, waits for the document body and lets async work
// settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("Navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(postLoadWait),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Find waits up to timeout for a visible element matching sel. A node
// carrying a disabled attribute is not interactable and counts as not found.
func (s *Session) Find(ctx context.Context, sel Selector, timeout time.Duration) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	findCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(findCtx, chromedp.Nodes(sel.Expr, &nodes, byOption(sel), chromedp.NodeVisible))
	if err != nil {
		// Deadline exhaustion means the element never showed up; everything
		// else is a driver failure.
		if findCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sel.Expr)
		}
		return nil, fmt.Errorf("query %s: %w", sel.Expr, err)
	}
	if len(nodes) == 0 || hasAttribute(nodes[0], "disabled") {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel.Expr)
	}

	el := &Element{Sel: sel, Node: nodes[0]}

	// Capture the text content while the node is known to be fresh.
	textCtx, cancelText := context.WithTimeout(s.tabCtx, timeout)
	defer cancelText()
	var text string
	if err := chromedp.Run(textCtx, chromedp.Text(sel.Expr, &text, byOption(sel))); err == nil {
		el.Text = text
	}
	return el, nil
}

// FindAll returns every visible element matching sel without waiting.
func (s *Session) FindAll(ctx context.Context, sel Selector) ([]*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	findCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(findCtx, chromedp.Nodes(sel.Expr, &nodes, byOption(sel), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query all %s: %w", sel.Expr, err)
	}

	els := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{Sel: sel, Node: n})
	}
	return els, nil
}

// Click activates an element, falling back to a selector-based click when the
// node reference has gone stale.
func (s *Session) Click(ctx context.Context, el *Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clickCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout)
	defer cancel()

	if el.Node != nil {
		if err := chromedp.Run(clickCtx, chromedp.MouseClickNode(el.Node)); err == nil {
			return nil
		}
	}
	if err := chromedp.Run(clickCtx, chromedp.Click(el.Sel.Expr, byOption(el.Sel))); err != nil {
		return fmt.Errorf("click %s: %w", el.Sel.Expr, err)
	}
	return nil
}

// Type clears an input and types text into it.
func (s *Session) Type(ctx context.Context, el *Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	typeCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout)
	defer cancel()

	if err := chromedp.Run(typeCtx,
		chromedp.SetValue(el.Sel.Expr, "", byOption(el.Sel)),
		chromedp.SendKeys(el.Sel.Expr, text, byOption(el.Sel)),
	); err != nil {
		return fmt.Errorf("type into %s: %w", el.Sel.Expr, err)
	}
	return nil
}

// CurrentURL reports the address of the current page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	locCtx, cancel := context.WithTimeout(s.tabCtx, s.navigationTimeout)
	defer cancel()

	var url string
	if err := chromedp.Run(locCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// Close terminates the tab and the browser process. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.tabCancel()
	s.allocCancel()

	// Wait for the browser process to confirm termination, bounded by the
	// caller's deadline and a hard ceiling.
	waitCtx, cancel := context.WithTimeout(ctx, closeWait)
	defer cancel()
	select {
	case <-s.allocCtx.Done():
		s.logger.Debug("Browser session closed")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for browser to close", zap.Error(waitCtx.Err()))
	}
	return nil
}
