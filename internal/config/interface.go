package config

import (
	"context"
)

// Loader is the interface for a format-specific rig loader.
type Loader interface {
	// Load reads a rig from path, which may be a single file or a directory
	// of rig files, and translates it into the format-agnostic model.
	Load(ctx context.Context, path string) (*Model, error)

	// LoadBytes parses an in-memory rig, such as the embedded builtin one.
	// The filename is used in diagnostics only.
	LoadBytes(ctx context.Context, filename string, src []byte) (*Model, error)
}
