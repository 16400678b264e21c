// Package run_script executes a shell snippet inside the workspace.
package run_script

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/cmdrun"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS     *workspace.Workspace
	Runner cmdrun.Runner
}

// Input defines the arguments for the 'arguments' HCL block. 'dir' is
// relative to the workspace root and defaults to the root itself.
type Input struct {
	Command string `hcl:"command"`
	Dir     string `hcl:"dir,optional"`
}

// OnRunRunScript is the handler for the 'run_script' step kind. The snippet
// runs under bash with -euo pipefail, so any failing line fails the step.
func (m *Module) OnRunRunScript(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	dir := m.WS.Root()
	if input.Dir != "" {
		var err error
		dir, err = m.WS.Resolve(input.Dir)
		if err != nil {
			return cty.NilVal, err
		}
	}

	script := "set -euo pipefail\n" + input.Command
	spec := cmdrun.Spec{Argv: []string{"bash", "-lc", script}, Dir: dir}

	logger.Info("Running script", "dir", dir)

	if err := m.Runner.Run(ctx, spec); err != nil {
		return cty.NilVal, fmt.Errorf("script failed: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"dir": cty.StringVal(dir),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("run_script", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       m.OnRunRunScript,
	})
}
