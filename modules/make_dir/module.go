// Package make_dir creates a directory (and parents) inside the workspace.
package make_dir

import (
	"context"
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS *workspace.Workspace
}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Path string `hcl:"path"`
}

// OnRunMakeDir is the handler for the 'make_dir' step kind. Creating a
// directory that already exists is a success.
func (m *Module) OnRunMakeDir(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	dir, err := m.WS.Resolve(input.Path)
	if err != nil {
		return cty.NilVal, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	logger.Info("Directory ready", "path", dir)

	return cty.ObjectVal(map[string]cty.Value{
		"path": cty.StringVal(dir),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("make_dir", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       m.OnRunMakeDir,
	})
}
