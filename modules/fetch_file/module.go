// Package fetch_file downloads a file over HTTP(S) into the workspace.
//
// Downloads land in a '.partial' file first and are renamed into place only
// after the transfer (and optional checksum) succeeds, so a failed fetch
// never leaves a truncated artifact behind.
package fetch_file

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/fsutil"
	"github.com/vk/labrig/internal/integrity"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS     *workspace.Workspace
	Client *resty.Client

	// Overwrite re-downloads files that already exist. Per-step
	// 'overwrite' arguments take precedence.
	Overwrite bool
}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	URL       string `hcl:"url"`
	Dest      string `hcl:"dest"`
	Filename  string `hcl:"filename,optional"`
	SHA256    string `hcl:"sha256,optional"`
	Overwrite *bool  `hcl:"overwrite,optional"`
}

// OnRunFetchFile is the handler for the 'fetch_file' step kind. A file that
// is already present and non-empty at the destination is not downloaded
// again unless overwrite is requested.
func (m *Module) OnRunFetchFile(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)

	destDir, err := m.WS.Resolve(input.Dest)
	if err != nil {
		return cty.NilVal, err
	}

	name := input.Filename
	if name == "" {
		name, err = remoteFilename(input.URL)
		if err != nil {
			return cty.NilVal, err
		}
	}
	final := filepath.Join(destDir, name)

	overwrite := m.Overwrite
	if input.Overwrite != nil {
		overwrite = *input.Overwrite
	}
	if !overwrite {
		if size, ok := fsutil.NonEmptyFile(final); ok {
			logger.Info("File already present, skipping download", "path", final, "size", size)
			return output(final, size, true), nil
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create destination directory '%s': %w", destDir, err)
	}

	partial := final + ".partial"
	defer os.Remove(partial)

	logger.Info("Downloading file", "dest", final)

	res, err := m.Client.R().
		SetContext(ctx).
		SetSaveResponse(true).
		SetOutputFileName(partial).
		Get(input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to download '%s': %w", input.URL, err)
	}
	if res.IsError() {
		return cty.NilVal, fmt.Errorf("download of '%s' failed with status %d", input.URL, res.StatusCode())
	}

	// Servers may name the file themselves; honor that only when the rig
	// did not pin a filename.
	if input.Filename == "" {
		if served := servedFilename(res.Header().Get("Content-Disposition")); served != "" && served != name {
			final = filepath.Join(destDir, served)
		}
	}

	if input.SHA256 != "" {
		if err := integrity.VerifyFileSHA256(partial, input.SHA256); err != nil {
			return cty.NilVal, err
		}
	}

	stat, err := os.Stat(partial)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to stat downloaded file: %w", err)
	}
	if err := os.Rename(partial, final); err != nil {
		return cty.NilVal, fmt.Errorf("failed to move downloaded file into place: %w", err)
	}

	logger.Info("Downloaded file", "path", final, "size", stat.Size())
	return output(final, stat.Size(), false), nil
}

// remoteFilename derives the local filename from the URL path, mirroring
// what wget would write.
func remoteFilename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url '%s': %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive a filename from '%s'; set the 'filename' argument", rawURL)
	}
	return name, nil
}

// servedFilename extracts a safe local filename from a Content-Disposition
// header, or "" when the header carries none.
func servedFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := filepath.Base(params["filename"])
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
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
	r.RegisterStep("fetch_file", &registry.RegisteredStep{
		NewInput:  func() any { return new(Input) },
		Fn:        m.OnRunFetchFile,
		Retryable: true,
	})
}
