// File: internal/browser/browsertest/fake.go
// Package browsertest provides a scriptable Driver double for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forumsign/forumsign/internal/browser"
)

// FakeDriver is an in-memory browser.Driver. Tests script it by populating
// Elements (keyed by selector expression) or by installing a FindHook for
// call-dependent behavior. All mutating calls are recorded.
type FakeDriver struct {
	mu sync.Mutex

	// URL is the current address reported by CurrentURL. Navigate updates it.
	URL string
	// Redirects maps a requested URL to the address the page actually lands
	// on, simulating server-side redirects.
	Redirects map[string]string
	// Elements maps a selector expression to the element it resolves to.
	Elements map[string]*browser.Element
	// FindHook, when set, overrides the Elements lookup entirely.
	FindHook func(sel browser.Selector) (*browser.Element, error)
	// OnClick, when set, observes every click by selector expression.
	OnClick func(expr string)

	// Failure injection.
	NavigateErr error
	ClickErr    error
	TypeErr     error
	CloseErr    error

	// Call records.
	Navigations []string
	Clicks      []string
	Typed       map[string]string
	FindCalls   map[string]int
	// FindWaits records the wait budget of every Find call per selector
	// expression, in call order.
	FindWaits  map[string][]time.Duration
	CloseCount int
}

var _ browser.Driver = (*FakeDriver)(nil)

// New returns an empty FakeDriver.
func New() *FakeDriver {
	return &FakeDriver{
		Redirects: make(map[string]string),
		Elements:  make(map[string]*browser.Element),
		Typed:     make(map[string]string),
		FindCalls: make(map[string]int),
		FindWaits: make(map[string][]time.Duration),
	}
}

// Add scripts a selector expression to resolve to an element with the given
// text.
func (f *FakeDriver) Add(expr, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Elements[expr] = &browser.Element{
		Sel:  browser.Selector{By: browser.ByXPath, Expr: expr},
		Text: text,
	}
}

// Remove unscripts a selector expression.
func (f *FakeDriver) Remove(expr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Elements, expr)
}

// Navigate records the URL and makes it current.
func (f *FakeDriver) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	if to, ok := f.Redirects[url]; ok {
		url = to
	}
	f.URL = url
	return nil
}

// Find resolves against the hook or the scripted element map. Misses return
// browser.ErrNotFound immediately; the timeout is recorded but never slept.
func (f *FakeDriver) Find(ctx context.Context, sel browser.Selector, timeout time.Duration) (*browser.Element, error) {
	f.mu.Lock()
	f.FindCalls[sel.Expr]++
	f.FindWaits[sel.Expr] = append(f.FindWaits[sel.Expr], timeout)
	hook := f.FindHook
	el, ok := f.Elements[sel.Expr]
	f.mu.Unlock()

	if hook != nil {
		return hook(sel)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, sel.Expr)
	}
	return el, nil
}

// FindAll returns the scripted element for sel, or nothing.
func (f *FakeDriver) FindAll(ctx context.Context, sel browser.Selector) ([]*browser.Element, error) {
	el, err := f.Find(ctx, sel, 0)
	if err != nil {
		return nil, nil
	}
	return []*browser.Element{el}, nil
}

// Click records the click.
func (f *FakeDriver) Click(ctx context.Context, el *browser.Element) error {
	f.mu.Lock()
	if f.ClickErr != nil {
		f.mu.Unlock()
		return f.ClickErr
	}
	f.Clicks = append(f.Clicks, el.Sel.Expr)
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		hook(el.Sel.Expr)
	}
	return nil
}

// Type records the text typed into the element.
func (f *FakeDriver) Type(ctx context.Context, el *browser.Element, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TypeErr != nil {
		return f.TypeErr
	}
	f.Typed[el.Sel.Expr] = text
	return nil
}

// CurrentURL reports the last navigated address.
func (f *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

// Close counts releases. Safe to call more than once, like the real session.
func (f *FakeDriver) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCount++
	return f.CloseErr
}
