package executor

import (
	"time"

	"github.com/vk/labrig/internal/plan"
)

// State represents the execution state of a step within a run.
type State int32

const (
	// Pending indicates the step has not started.
	Pending State = iota
	// Running indicates the step is currently executing.
	Running
	// Done indicates the step completed successfully.
	Done
	// Failed indicates the step returned an error.
	Failed
	// Skipped indicates the step never ran because an earlier step failed.
	Skipped
)

// String returns the lowercase state name used in logs and reports.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepResult records the outcome of one planned step.
type StepResult struct {
	Step     *plan.Step
	State    State
	Duration time.Duration
	// Bytes is the payload size a fetch-class step reported, 0 otherwise.
	Bytes int64
	Err   error
}

// Result is the full outcome of a run: one StepResult per planned step in
// plan order, plus the first failure when the run aborted.
type Result struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Steps    []*StepResult
	// FirstFailure points at the failing step's result, nil on success.
	FirstFailure *StepResult
}

// Err returns the first failure's error, or nil for a clean run.
func (r *Result) Err() error {
	if r.FirstFailure == nil {
		return nil
	}
	return r.FirstFailure.Err
}

// CountByState tallies step outcomes for summaries.
func (r *Result) CountByState() map[State]int {
	counts := make(map[State]int)
	for _, sr := range r.Steps {
		counts[sr.State]++
	}
	return counts
}
