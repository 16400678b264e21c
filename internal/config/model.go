package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of a loaded rig:
// the workspace declaration plus the ordered list of provisioning steps.
type Model struct {
	Workspace *Workspace
	Steps     []*Step
}

// Workspace is the format-agnostic representation of a `workspace` block.
type Workspace struct {
	Root string
}

// Step is the format-agnostic representation of a `step` block. Arguments
// stay as an undecoded body; the executor decodes them against the module's
// input struct with the rig's evaluation context.
type Step struct {
	Kind      string
	Name      string
	Arguments hcl.Body
	// SourceFile is the rig file the step was declared in, for diagnostics.
	SourceFile string
}

// ID returns the step's unique address within a rig, e.g. "step.fetch_file.weights".
func (s *Step) ID() string {
	return fmt.Sprintf("step.%s.%s", s.Kind, s.Name)
}

// Validate checks the structural invariants a loader cannot express:
// non-empty labels and unique step IDs across all rig files.
func (m *Model) Validate() error {
	seen := make(map[string]string, len(m.Steps))
	for _, step := range m.Steps {
		if step.Kind == "" || step.Name == "" {
			return fmt.Errorf("step in %s is missing a kind or name label", step.SourceFile)
		}
		id := step.ID()
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("duplicate step %q declared in %s and %s", id, prev, step.SourceFile)
		}
		seen[id] = step.SourceFile
	}
	return nil
}
