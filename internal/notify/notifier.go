// File: internal/notify/notifier.go
package notify

import "time"

// Result is the structured attempt outcome handed to a Notifier.
type Result struct {
	Succeeded bool
	Summary   string
	Metadata  map[string]string
	When      time.Time
}

// Notifier delivers an attempt result to an operator. Fire-and-forget from
// the caller's perspective: implementations log delivery failures and the
// returned error is informational, never fatal for the attempt.
type Notifier interface {
	Notify(result Result) error
}

// Nop discards results. Used when email notification is disabled.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Result) error { return nil }
