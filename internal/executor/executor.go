// Package executor runs a plan's steps strictly in order, fail-fast. Each
// step's handler is invoked through the registry; the first error marks
// every remaining step skipped and ends the run. The executor returns a
// Result rather than aborting the process, so the CLI boundary decides
// exit codes.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/plan"
	"github.com/vk/labrig/internal/registry"
)

const defaultRetryWait = 2 * time.Second

// Executor is the sequential interpreter for a plan.
type Executor struct {
	// OnStepStart and OnStepFinish are optional progress hooks, invoked
	// synchronously around each step. The status server feeds on them.
	OnStepStart  func(res *StepResult)
	OnStepFinish func(res *StepResult)

	// RetryWait is the pause between attempts of a retryable step.
	RetryWait time.Duration

	registry *registry.Registry
	evalCtx  *hcl.EvalContext
	retries  int
}

// New creates an executor. retries is the number of extra attempts a
// retryable step gets after its first failure; 0 keeps the strict
// single-attempt contract.
func New(reg *registry.Registry, evalCtx *hcl.EvalContext, retries int) *Executor {
	return &Executor{
		RetryWait: defaultRetryWait,
		registry:  reg,
		evalCtx:   evalCtx,
		retries:   retries,
	}
}

// Run executes the plan's steps in order. After the first failure the
// remaining steps are recorded as skipped without being attempted.
// Cancelling the context fails the in-flight step and skips the rest.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) *Result {
	logger := ctxlog.FromContext(ctx)

	res := &Result{
		RunID:   p.RunID,
		Started: time.Now(),
		Steps:   make([]*StepResult, 0, len(p.Steps)),
	}

	for _, step := range p.Steps {
		sr := &StepResult{Step: step, State: Pending}
		res.Steps = append(res.Steps, sr)

		if res.FirstFailure != nil || ctx.Err() != nil {
			sr.State = Skipped
			logger.Warn("⏭️ Step skipped.", "step", step.ID())
			continue
		}

		e.runOne(ctx, step, sr)
		if sr.State == Failed && res.FirstFailure == nil {
			res.FirstFailure = sr
		}
	}

	res.Duration = time.Since(res.Started)
	return res
}

// DryRun logs what the plan would do without invoking any handler. Every
// step stays pending.
func (e *Executor) DryRun(ctx context.Context, p *plan.Plan) *Result {
	logger := ctxlog.FromContext(ctx)

	res := &Result{
		RunID:   p.RunID,
		Started: time.Now(),
		Steps:   make([]*StepResult, 0, len(p.Steps)),
	}
	for _, step := range p.Steps {
		logger.Info("📋 Would run step", "step", step.ID(), "ordinal", step.Ordinal)
		res.Steps = append(res.Steps, &StepResult{Step: step, State: Pending})
	}
	res.Duration = time.Since(res.Started)
	return res
}

// runOne executes a single step, honoring the retry budget for retryable
// kinds, and fills in its result.
func (e *Executor) runOne(ctx context.Context, step *plan.Step, sr *StepResult) {
	logger := ctxlog.FromContext(ctx).With("step", step.ID())

	sr.State = Running
	if e.OnStepStart != nil {
		e.OnStepStart(sr)
	}
	logger.Info("▶️ Starting step", "ordinal", step.Ordinal)
	start := time.Now()

	handler, ok := e.registry.Lookup(step.Kind)
	if !ok {
		// The planner validates kinds, so this is a programmer error.
		panic(fmt.Sprintf("no handler registered for kind '%s'", step.Kind))
	}

	attempts := 1
	if handler.Retryable && e.retries > 0 {
		attempts += e.retries
	}

	output, err := e.invokeHandler(ctx, step, handler)
	for attempt := 2; err != nil && attempt <= attempts && ctx.Err() == nil; attempt++ {
		logger.Warn("Step failed, retrying.", "attempt", attempt, "attempts", attempts, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(e.RetryWait):
			output, err = e.invokeHandler(ctx, step, handler)
		}
	}

	sr.Duration = time.Since(start)
	if err != nil {
		sr.State = Failed
		sr.Err = fmt.Errorf("execution failed for %s: %w", step.ID(), err)
		logger.Error("❌ Step failed.", "duration", sr.Duration, "error", err)
	} else {
		sr.State = Done
		sr.Bytes = bytesFromOutput(output)
		if sr.Bytes > 0 {
			logger.Info("✅ Finished step", "duration", sr.Duration, "size", humanize.Bytes(uint64(sr.Bytes)))
		} else {
			logger.Info("✅ Finished step", "duration", sr.Duration)
		}
	}

	if e.OnStepFinish != nil {
		e.OnStepFinish(sr)
	}
}
