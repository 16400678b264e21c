package hclrig

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/labrig/internal/config"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/fsutil"
)

// fileWorkspace mirrors a `workspace` block in a rig file.
type fileWorkspace struct {
	Root string `hcl:"root"`
}

// fileArguments captures the raw body of an `arguments` block for later
// decoding against a module's input struct.
type fileArguments struct {
	Body hcl.Body `hcl:",remain"`
}

// fileStep mirrors a `step` block in a rig file.
type fileStep struct {
	Kind      string         `hcl:"kind,label"`
	Name      string         `hcl:"name,label"`
	Arguments *fileArguments `hcl:"arguments,block"`
}

// fileRoot mirrors the top level of a single rig file.
type fileRoot struct {
	Workspace *fileWorkspace `hcl:"workspace,block"`
	Steps     []*fileStep    `hcl:"step,block"`
}

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL rig loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads the rig at path (a .hcl file or a directory of them),
// merges all files in path order, and validates the result.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rig path %q: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		files, err = findRigFiles(path)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rig directory %q: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .hcl files found under %q", path)
		}
	} else {
		files = []string{path}
	}
	logger.Debug("Rig files discovered.", "count", len(files))

	model := &config.Model{}
	for _, file := range files {
		hclFile, diags := l.parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		if err := mergeFile(model, file, hclFile.Body); err != nil {
			return nil, err
		}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Rig loaded.", "steps", len(model.Steps))
	return model, nil
}

// LoadBytes parses an in-memory rig, such as the embedded builtin one.
func (l *Loader) LoadBytes(ctx context.Context, filename string, src []byte) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	hclFile, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}

	model := &config.Model{}
	if err := mergeFile(model, filename, hclFile.Body); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Rig loaded.", "steps", len(model.Steps))
	return model, nil
}

// mergeFile decodes one rig file body into the shared model, appending
// steps in declaration order.
func mergeFile(model *config.Model, filename string, body hcl.Body) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", filename, diags)
	}

	if root.Workspace != nil {
		if model.Workspace != nil {
			return fmt.Errorf("duplicate workspace block in %s: a rig declares at most one", filename)
		}
		model.Workspace = &config.Workspace{Root: root.Workspace.Root}
	}

	for _, s := range root.Steps {
		step := &config.Step{
			Kind:       s.Kind,
			Name:       s.Name,
			SourceFile: filename,
		}
		if s.Arguments != nil {
			step.Arguments = s.Arguments.Body
		}
		model.Steps = append(model.Steps, step)
	}
	return nil
}

// findRigFiles collects all .hcl files under rootPath, sorted by path so
// multi-file rigs have a stable step order.
func findRigFiles(rootPath string) ([]string, error) {
	files, err := fsutil.FindFilesByExtension(rootPath, ".hcl")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
