package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/executor"
	"github.com/vk/labrig/internal/hclrig"
	"github.com/vk/labrig/internal/plan"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/report"
	"github.com/vk/labrig/internal/workspace"
)

// Run executes the loaded rig against the workspace. Unlike load failures,
// anything that goes wrong here is an operational error and is returned, not
// panicked: the CLI boundary turns it into the exit code.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	root := appConfig.Workspace
	if root == "" && a.model.Workspace != nil {
		root = a.model.Workspace.Root
	}
	ws, err := workspace.Open(root)
	if err != nil {
		return fmt.Errorf("workspace validation failed: %w", err)
	}
	a.logger.Info("Workspace opened.", "root", ws.Root())

	vars, err := hclrig.BuildVars(appConfig.VarFiles, appConfig.Vars)
	if err != nil {
		return err
	}
	evalCtx := hclrig.BuildEvalContext(vars, ws.Root())

	modules := a.modules
	if len(modules) == 0 {
		var cleanup func()
		modules, cleanup = coreModules(ws, appConfig)
		defer cleanup()
	}
	reg := registry.New()
	for _, mod := range modules {
		mod.Register(reg)
	}
	a.logger.Debug("All step modules registered.", "kinds", reg.Kinds())

	p, err := plan.Build(ctx, a.model, reg)
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}
	a.logger.Debug("Plan built.", "steps", len(p.Steps), "run_id", p.RunID)

	if len(p.Steps) == 0 {
		a.logger.Warn("No steps found in rig, nothing to do.")
		return nil
	}

	exec := executor.New(reg, evalCtx, appConfig.Retries)

	status := newStatusState(p)
	exec.OnStepStart = status.stepStarted
	exec.OnStepFinish = status.stepFinished
	if appConfig.StatusPort > 0 {
		a.startStatusServer(appConfig.StatusPort, status)
	}

	var result *executor.Result
	if appConfig.DryRun {
		a.logger.Info("📋 Dry run: listing steps without executing.", "steps", len(p.Steps))
		result = exec.DryRun(ctx, p)
	} else {
		a.logger.Info("🚀 Starting provisioning run...", "steps", len(p.Steps), "run_id", p.RunID)
		result = exec.Run(ctx, p)
	}

	a.logSummary(result)

	if appConfig.Report != "" {
		rep := report.FromResult(result)
		if err := rep.Write(appConfig.Report); err != nil {
			return err
		}
		a.logger.Info("Report written.", "path", appConfig.Report)
	}

	if err := result.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// logSummary emits the single closing line every run ends with.
func (a *App) logSummary(res *executor.Result) {
	counts := res.CountByState()
	args := []any{
		"run_id", res.RunID,
		"duration", res.Duration.Round(time.Millisecond),
		"done", counts[executor.Done],
		"failed", counts[executor.Failed],
		"skipped", counts[executor.Skipped],
	}

	var total int64
	for _, sr := range res.Steps {
		total += sr.Bytes
	}
	if total > 0 {
		args = append(args, "fetched", humanize.Bytes(uint64(total)))
	}

	if res.FirstFailure != nil {
		args = append(args, "failed_step", res.FirstFailure.Step.ID())
		a.logger.Error("🏁 Run finished with a failure.", args...)
		return
	}
	a.logger.Info("🏁 Run finished.", args...)
}
