package testutil

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/registry"
)

// NoOpModule registers a single "no_op" step kind. It's useful for tests
// that should fail before execution begins but still need valid HCL that
// can pass planner validation.
type NoOpModule struct{}

// Register registers the "no_op" kind, which takes no arguments and does
// nothing.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterStep("no_op", &registry.RegisteredStep{
		NewInput: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, input *struct{}) (cty.Value, error) {
			// No operation
			return cty.NilVal, nil
		},
	})
}
