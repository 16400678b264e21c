package cmdrun

import (
	"context"
	"sync"
)

// RecordingRunner is a test double that records every Spec it receives
// instead of executing anything. FailOn, when set, makes the matching
// invocation return Err.
type RecordingRunner struct {
	mu    sync.Mutex
	calls []Spec

	// Err is returned for invocations matched by FailOn. When FailOn is
	// nil and Err is set, every invocation fails.
	Err    error
	FailOn func(spec Spec) bool
}

// Run records the spec and returns the configured error, if any applies.
func (r *RecordingRunner) Run(_ context.Context, spec Spec) error {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	r.mu.Unlock()

	if r.Err != nil && (r.FailOn == nil || r.FailOn(spec)) {
		return r.Err
	}
	return nil
}

// Calls returns a copy of the recorded specs in invocation order.
func (r *RecordingRunner) Calls() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Spec, len(r.calls))
	copy(out, r.calls)
	return out
}
