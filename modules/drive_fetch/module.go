// Package drive_fetch downloads a Google Drive hosted file by its ID.
//
// The heavy lifting (interstitial confirmation pages, cookies, partial-file
// discipline) lives in internal/gdrive; this module binds it to the rig.
package drive_fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/fsutil"
	"github.com/vk/labrig/internal/gdrive"
	"github.com/vk/labrig/internal/integrity"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS         *workspace.Workspace
	Downloader gdrive.Downloader

	// Overwrite re-downloads files that already exist.
	Overwrite bool
}

// Input defines the arguments for the 'arguments' HCL block. 'dest' is the
// full workspace-relative path of the file to write.
type Input struct {
	ID     string `hcl:"id"`
	Dest   string `hcl:"dest"`
	SHA256 string `hcl:"sha256,optional"`
}

// OnRunDriveFetch is the handler for the 'drive_fetch' step kind. Like
// fetch_file, an existing non-empty destination short-circuits the download.
func (m *Module) OnRunDriveFetch(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("id", input.ID)

	dest, err := m.WS.Resolve(input.Dest)
	if err != nil {
		return cty.NilVal, err
	}

	if !m.Overwrite {
		if size, ok := fsutil.NonEmptyFile(dest); ok {
			logger.Info("File already present, skipping download", "path", dest, "size", size)
			return output(dest, size, true), nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create destination directory for '%s': %w", input.Dest, err)
	}

	logger.Info("Downloading drive file", "dest", dest)

	size, err := m.Downloader.Fetch(ctx, input.ID, dest)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to fetch drive file '%s': %w", input.ID, err)
	}

	if input.SHA256 != "" {
		if err := integrity.VerifyFileSHA256(dest, input.SHA256); err != nil {
			os.Remove(dest)
			return cty.NilVal, err
		}
	}

	logger.Info("Downloaded drive file", "path", dest, "size", size)
	return output(dest, size, false), nil
}

func output(path string, bytes int64, skipped bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"path":    cty.StringVal(path),
		"bytes":   cty.NumberIntVal(bytes),
		"skipped": cty.BoolVal(skipped),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("drive_fetch", &registry.RegisteredStep{
		NewInput:  func() any { return new(Input) },
		Fn:        m.OnRunDriveFetch,
		Retryable: true,
	})
}
