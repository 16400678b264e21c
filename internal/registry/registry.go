package registry

import (
	"sort"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the step handlers registered for a single application
// instance, keyed by step kind.
type Registry struct {
	Steps map[string]*RegisteredStep
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		Steps: make(map[string]*RegisteredStep),
	}
}

// Lookup returns the handler registered for a step kind.
func (r *Registry) Lookup(kind string) (*RegisteredStep, bool) {
	step, ok := r.Steps[kind]
	return step, ok
}

// Kinds returns all registered step kinds in sorted order, for validation
// messages and usage text.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.Steps))
	for kind := range r.Steps {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
