// Package clone_repo clones a git repository into the workspace.
package clone_repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/cmdrun"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/fsutil"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS     *workspace.Workspace
	Runner cmdrun.Runner
}

// Input defines the arguments for the 'arguments' HCL block. Without
// 'branch' or 'depth' the clone is a full default-branch clone.
type Input struct {
	URL    string `hcl:"url"`
	Dest   string `hcl:"dest"`
	Branch string `hcl:"branch,optional"`
	Depth  int    `hcl:"depth,optional"`
}

// OnRunCloneRepo is the handler for the 'clone_repo' step kind. A
// destination that already exists and is non-empty is assumed to be a
// previous clone and is left untouched.
func (m *Module) OnRunCloneRepo(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)

	dest, err := m.WS.Resolve(input.Dest)
	if err != nil {
		return cty.NilVal, err
	}

	if fsutil.NonEmptyDir(dest) {
		logger.Info("Destination already populated, skipping clone", "dest", dest)
		return output(dest, true), nil
	}

	argv := []string{"git", "clone"}
	if input.Branch != "" {
		argv = append(argv, "--branch", input.Branch)
	}
	if input.Depth > 0 {
		argv = append(argv, "--depth", strconv.Itoa(input.Depth))
	}
	argv = append(argv, input.URL, dest)

	logger.Info("Cloning repository", "dest", dest)

	if err := m.Runner.Run(ctx, cmdrun.Spec{Argv: argv}); err != nil {
		return cty.NilVal, fmt.Errorf("failed to clone '%s': %w", input.URL, err)
	}

	return output(dest, false), nil
}

func output(path string, skipped bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"path":    cty.StringVal(path),
		"skipped": cty.BoolVal(skipped),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("clone_repo", &registry.RegisteredStep{
		NewInput:  func() any { return new(Input) },
		Fn:        m.OnRunCloneRepo,
		Retryable: true,
	})
}
