package registry

import (
	"fmt"
	"log/slog"
)

// RegisteredStep holds the compiled Go parts of a step kind: the input
// struct constructor and the handler function invoked by the executor.
// The handler must have the shape
//
//	func(ctx context.Context, input *T) (cty.Value, error)
//
// where *T matches the value produced by NewInput. Retryable marks kinds
// whose failures are worth another attempt when the run opts into retries,
// which in practice means the network-bound acquisition steps.
type RegisteredStep struct {
	NewInput  func() any
	Fn        any
	Retryable bool
}

// RegisterStep registers the handler for a step kind.
func (r *Registry) RegisterStep(kind string, handler *RegisteredStep) {
	if _, exists := r.Steps[kind]; exists {
		panic(fmt.Sprintf("step handler with kind '%s' already registered", kind))
	}
	slog.Debug("Registering step handler.", "kind", kind)
	r.Steps[kind] = handler
}
