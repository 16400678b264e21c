// Package move_file relocates a file within the workspace.
package move_file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS *workspace.Workspace
}

// Input defines the arguments for the 'arguments' HCL block. When 'to'
// names an existing directory the file is moved into it, keeping its name.
type Input struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// OnRunMoveFile is the handler for the 'move_file' step kind. A missing
// source with the destination already in place counts as moved, so rerunning
// a rig does not fail on relocations from a previous run.
func (m *Module) OnRunMoveFile(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	from, err := m.WS.Resolve(input.From)
	if err != nil {
		return cty.NilVal, err
	}
	to, err := m.WS.Resolve(input.To)
	if err != nil {
		return cty.NilVal, err
	}

	if stat, statErr := os.Stat(to); statErr == nil && stat.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}

	if _, statErr := os.Stat(from); os.IsNotExist(statErr) {
		if _, destErr := os.Stat(to); destErr == nil {
			logger.Info("Source gone and destination present, treating as already moved", "from", from, "to", to)
			return output(to, true), nil
		}
		return cty.NilVal, fmt.Errorf("cannot move '%s': %w", input.From, statErr)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create directory for '%s': %w", input.To, err)
	}

	if err := os.Rename(from, to); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return cty.NilVal, fmt.Errorf("failed to move '%s' to '%s': %w", input.From, input.To, err)
		}
		// Rename cannot cross filesystems; fall back to copy and delete.
		if err := copyFile(from, to); err != nil {
			return cty.NilVal, fmt.Errorf("failed to move '%s' to '%s': %w", input.From, input.To, err)
		}
		if err := os.Remove(from); err != nil {
			return cty.NilVal, fmt.Errorf("failed to remove '%s' after copying: %w", input.From, err)
		}
	}

	logger.Info("Moved file", "from", from, "to", to)
	return output(to, false), nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	stat, err := src.Stat()
	if err != nil {
		return err
	}

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(to)
		return err
	}
	return dst.Close()
}

func output(path string, skipped bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"path":    cty.StringVal(path),
		"skipped": cty.BoolVal(skipped),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("move_file", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       m.OnRunMoveFile,
	})
}
