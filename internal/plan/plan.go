// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Plan, the ordered list of provisioning steps a run
// executes.
//
// Why a flat list and not a graph?
//
// Provisioning a workspace is inherently serial: an archive can only be
// unpacked after its download finished, a weight file can only be moved
// into a repository after the clone completed. The rig format therefore
// has no dependency syntax at all; declaration order IS the dependency
// order, and the ordinal on each step makes that order explicit in logs
// and reports. Collapsing the model to a list keeps the interpreter small
// enough to audit at a glance, which matters more here than parallel
// downloads would.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/labrig/internal/config"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
)

// Step is one planned provisioning step. It is immutable once built; the
// executor records run state in its result, not here.
type Step struct {
	// Ordinal is the step's position in the run, starting at 0.
	Ordinal int
	// Kind selects the registered module that executes the step.
	Kind string
	// Name is the instance label from the rig file.
	Name string
	// Arguments is the raw arguments body, decoded by the executor against
	// the module's input struct. Nil when the step declared none.
	Arguments hcl.Body
	// SourceFile is the rig file the step came from, for diagnostics.
	SourceFile string
}

// ID returns the step's unique address, e.g. "step.extract_archive.carla".
func (s *Step) ID() string {
	return fmt.Sprintf("step.%s.%s", s.Kind, s.Name)
}

// Plan is the ordered, validated sequence of steps for one run.
type Plan struct {
	// RunID uniquely identifies this run in logs and reports.
	RunID string
	Steps []*Step
}

// Build translates the loaded config model into an executable plan,
// assigning ordinals and rejecting steps whose kind has no registered
// handler.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	p := &Plan{
		RunID: uuid.NewString(),
		Steps: make([]*Step, 0, len(model.Steps)),
	}

	for i, s := range model.Steps {
		if _, ok := reg.Lookup(s.Kind); !ok {
			return nil, fmt.Errorf("step %s in %s uses unknown kind %q (registered kinds: %s)",
				s.ID(), s.SourceFile, s.Kind, strings.Join(reg.Kinds(), ", "))
		}
		p.Steps = append(p.Steps, &Step{
			Ordinal:    i,
			Kind:       s.Kind,
			Name:       s.Name,
			Arguments:  s.Arguments,
			SourceFile: s.SourceFile,
		})
	}

	logger.Debug("Plan built.", "run_id", p.RunID, "steps", len(p.Steps))
	return p, nil
}
