// File: internal/browser/driver.go
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// ErrNotFound is returned when a selector matches no existing, interactable
// element within its wait budget. Callers decide whether that is fatal: the
// sign-in flow treats it as a soft miss for optional targets and as a step
// failure for mandatory ones.
var ErrNotFound = errors.New("element not found")

// By names the query mechanism of a Selector.
type By string

const (
	ByXPath By = "xpath"
	ByCSS   By = "css"
)

// Selector describes one way to locate a logical UI target.
type Selector struct {
	By   By
	Expr string
}

// Element is a resolved reference to an interactable node on the current
// page. The originating selector is kept so follow-up operations can re-query
// if the node reference goes stale.
type Element struct {
	Sel  Selector
	Node *cdp.Node
	// Text is the text content captured at resolution time.
	Text string
}

// Driver is the capability the sign-in engine needs from a remote browser
// session. Implemented by Session (chromedp); tests substitute scripted
// fakes. All operations may fail with a driver-level error, which callers
// uniformly convert into a step failure.
type Driver interface {
	// Navigate loads a URL and waits for the page to be ready.
	Navigate(ctx context.Context, url string) error
	// Find waits up to timeout for a visible, enabled element matching sel.
	// Returns ErrNotFound when the wait budget is exhausted.
	Find(ctx context.Context, sel Selector, timeout time.Duration) (*Element, error)
	// FindAll returns every currently visible element matching sel, without
	// waiting. An empty result is not an error.
	FindAll(ctx context.Context, sel Selector) ([]*Element, error)
	// Click activates an element.
	Click(ctx context.Context, el *Element) error
	// Type clears an input element and types text into it.
	Type(ctx context.Context, el *Element, text string) error
	// CurrentURL reports the address of the current page.
	CurrentURL(ctx context.Context) (string, error)
	// Close releases the session. Safe to call more than once.
	Close(ctx context.Context) error
}

// Factory produces one Driver per attempt. The attempt controller owns the
// returned Driver exclusively and must Close it on every exit path.
type Factory func(ctx context.Context) (Driver, error)

// hasAttribute reports whether the node carries the named attribute,
// regardless of its value. cdp.Node stores attributes as a flat
// name/value pair list.
func hasAttribute(n *cdp.Node, name string) bool {
	if n == nil {
		return false
	}
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if n.Attributes[i] == name {
			return true
		}
	}
	return false
}
