// Package extract_archive unpacks tar-based archives inside the workspace.
// Supported formats: .tar, .tar.gz, .tgz, .tar.zst.
package extract_archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	WS *workspace.Workspace
}

// Input defines the arguments for the 'arguments' HCL block. When 'dest' is
// omitted the archive is unpacked next to itself. 'delete_archive' removes
// the archive file after a successful extraction.
type Input struct {
	Archive       string `hcl:"archive"`
	Dest          string `hcl:"dest,optional"`
	DeleteArchive bool   `hcl:"delete_archive,optional"`
}

// OnRunExtractArchive is the handler for the 'extract_archive' step kind.
// Extracting over existing output overwrites it, so rerunning is safe.
func (m *Module) OnRunExtractArchive(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	archive, err := m.WS.Resolve(input.Archive)
	if err != nil {
		return cty.NilVal, err
	}

	destDir := filepath.Dir(archive)
	if input.Dest != "" {
		destDir, err = m.WS.Resolve(input.Dest)
		if err != nil {
			return cty.NilVal, err
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create extraction directory '%s': %w", destDir, err)
	}

	f, err := os.Open(archive)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open archive '%s': %w", input.Archive, err)
	}
	defer f.Close()

	reader, closeReader, err := newReader(archive, f)
	if err != nil {
		return cty.NilVal, err
	}
	defer closeReader()

	logger.Info("Extracting archive", "archive", archive, "dest", destDir)

	files, bytes, err := untar(ctx, tar.NewReader(reader), destDir)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to extract '%s': %w", input.Archive, err)
	}

	if input.DeleteArchive {
		// Close before removing; some filesystems refuse to unlink open files.
		f.Close()
		if err := os.Remove(archive); err != nil {
			return cty.NilVal, fmt.Errorf("failed to remove archive '%s' after extraction: %w", input.Archive, err)
		}
		logger.Info("Removed archive after extraction", "archive", archive)
	}

	logger.Info("Extracted archive", "archive", archive, "files", files)

	return cty.ObjectVal(map[string]cty.Value{
		"path":  cty.StringVal(destDir),
		"files": cty.NumberIntVal(files),
		"bytes": cty.NumberIntVal(bytes),
	}), nil
}

// newReader wraps f with the decompressor matching the archive extension.
func newReader(path string, f *os.File) (io.Reader, func() error, error) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read gzip header of '%s': %w", filepath.Base(path), err)
		}
		return gz, gz.Close, nil
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read zstd header of '%s': %w", filepath.Base(path), err)
		}
		return zr, func() error { zr.Close(); return nil }, nil
	case strings.HasSuffix(path, ".tar"):
		return f, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive format '%s' (expected .tar, .tar.gz, .tgz, or .tar.zst)", filepath.Base(path))
	}
}

// untar writes the stream's entries under destDir, returning the number of
// regular files written and their total uncompressed size.
func untar(ctx context.Context, tr *tar.Reader, destDir string) (int64, int64, error) {
	var files, bytes int64
	for {
		if err := ctx.Err(); err != nil {
			return files, bytes, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return files, bytes, nil
		}
		if err != nil {
			return files, bytes, err
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return files, bytes, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, bytes, err
			}
		case tar.TypeReg:
			n, err := writeFile(target, tr, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return files, bytes, err
			}
			files++
			bytes += n
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return files, bytes, fmt.Errorf("entry '%s' links to absolute path '%s'", hdr.Name, hdr.Linkname)
			}
			if _, err := securePath(destDir, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return files, bytes, err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return files, bytes, err
			}
		default:
			ctxlog.FromContext(ctx).Debug("Skipping unsupported archive entry", "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// securePath joins an entry name onto destDir, rejecting names that would
// land outside it.
func securePath(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("entry '%s' has an absolute path", name)
	}
	target := filepath.Join(destDir, name)
	if target != destDir && !strings.HasPrefix(target, destDir+string(filepath.Separator)) {
		return "", fmt.Errorf("entry '%s' escapes the extraction directory", name)
	}
	return target, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("extract_archive", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       m.OnRunExtractArchive,
	})
}
