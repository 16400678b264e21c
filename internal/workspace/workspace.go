// Package workspace models the directory every provisioning step writes
// under. The root must exist before a run starts; steps address files and
// directories by paths relative to it, and the resolver rejects anything
// that would land outside.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRoot is the workspace used when neither the rig nor the CLI
// names one. It matches the historical layout where the provisioner runs
// from a checkout sitting next to its dependencies directory.
const DefaultRoot = "../dependencies"

// Workspace is the validated root directory of a provisioning run.
type Workspace struct {
	root string
}

// Open validates that path exists and is a directory, and returns the
// workspace handle. The root is never created implicitly; a missing root
// is the caller's error.
func Open(path string) (*Workspace, error) {
	if path == "" {
		path = DefaultRoot
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workspace root %q does not exist", path)
		}
		return nil, fmt.Errorf("failed to stat workspace root %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", path)
	}

	return &Workspace{root: abs}, nil
}

// Root returns the absolute path of the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve joins a step-relative path onto the root. Absolute paths and
// paths that escape the root are rejected so a rig cannot write outside
// its workspace.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		return w.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative to the workspace root", rel)
	}

	joined := filepath.Join(w.root, rel)
	if joined != w.root && !strings.HasPrefix(joined, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", rel)
	}

	return joined, nil
}
