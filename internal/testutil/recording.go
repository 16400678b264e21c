package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/registry"
)

// RecorderModule registers a "probe" step kind that records the order its
// steps execute in. System tests use it to observe the interpreter without
// touching the filesystem or the network.
type RecorderModule struct {
	mu   sync.Mutex
	runs []string

	// FailOn names a probe id whose step should return an error, for
	// exercising the fail-fast path.
	FailOn string
}

// Runs returns the probe ids in the order they executed.
func (m *RecorderModule) Runs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.runs...)
}

// Register registers the "probe" step kind's Go handler.
func (m *RecorderModule) Register(r *registry.Registry) {
	type probeInput struct {
		ID string `hcl:"id"`
	}

	r.RegisterStep("probe", &registry.RegisteredStep{
		NewInput: func() any { return new(probeInput) },
		Fn: func(ctx context.Context, input *probeInput) (cty.Value, error) {
			m.mu.Lock()
			m.runs = append(m.runs, input.ID)
			m.mu.Unlock()

			if m.FailOn != "" && m.FailOn == input.ID {
				return cty.NilVal, fmt.Errorf("probe '%s' was told to fail", input.ID)
			}
			return cty.ObjectVal(map[string]cty.Value{
				"id": cty.StringVal(input.ID),
			}), nil
		},
	})
}
