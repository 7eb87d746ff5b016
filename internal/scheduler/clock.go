// File: internal/scheduler/clock.go
package scheduler

import "time"

// Clock abstracts wall-clock access so tests can drive the loop with a fake
// clock instead of real sleeps.
type Clock interface {
	// Now reports the current time.
	Now() time.Time
	// After waits for d to elapse and then delivers the current time.
	After(d time.Duration) <-chan time.Time
}

// systemClock is the production Clock.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real-time Clock.
func SystemClock() Clock { return systemClock{} }
