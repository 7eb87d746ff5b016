// File: internal/checkin/outcome.go
package checkin

// SignalKind classifies one piece of completion evidence.
type SignalKind int

const (
	// WeakIndicator is evidence consistent with, but not conclusive of,
	// a completed check-in (a streak counter, a level display).
	WeakIndicator SignalKind = iota
	// ExplicitSuccess is conclusive evidence: the page states the check-in
	// happened (a rank announcement, the check-in address itself).
	ExplicitSuccess
	// AlreadyDone means the page says today's check-in was done earlier.
	AlreadyDone
)

// CompletionSignal is one observed piece of evidence with the text that
// produced it.
type CompletionSignal struct {
	Kind SignalKind
	Text string
}

// Confidence bases carried on an Outcome. Kept as constants so tests and
// operators see stable strings.
const (
	BasisExplicit    = "explicit-signal"
	BasisAddress     = "address-match"
	BasisAlreadyDone = "already-done"
	BasisAggregate   = "aggregate-heuristic"
	BasisNoSignal    = "no-signal"
)

// Outcome is the result of one full attempt: did the check-in succeed, on
// what basis do we believe that, and whatever metadata the page offered
// (rank, streak). Created once per attempt and handed to the reporter.
type Outcome struct {
	AttemptID       string
	Succeeded       bool
	ConfidenceBasis string
	Metadata        map[string]string
}

// newOutcome allocates an Outcome with a non-nil metadata map.
func newOutcome(attemptID string) Outcome {
	return Outcome{AttemptID: attemptID, Metadata: make(map[string]string)}
}
