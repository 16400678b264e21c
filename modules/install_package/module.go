// Package install_package installs a host package for the current user
// (pip) or system-wide (apt-get).
package install_package

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/cmdrun"
	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/registry"
)

// Scope values accepted by the 'scope' argument.
const (
	ScopeUser   = "user"
	ScopeSystem = "system"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Runner cmdrun.Runner
}

// Input defines the arguments for the 'arguments' HCL block. Scope defaults
// to "user".
type Input struct {
	Name  string `hcl:"name"`
	Scope string `hcl:"scope,optional"`
}

// OnRunInstallPackage is the handler for the 'install_package' step kind.
// Package managers treat an already-installed package as a no-op, so the
// step is naturally idempotent.
func (m *Module) OnRunInstallPackage(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	scope := input.Scope
	if scope == "" {
		scope = ScopeUser
	}

	var spec cmdrun.Spec
	switch scope {
	case ScopeUser:
		spec = cmdrun.Spec{Argv: []string{"pip", "install", "--user", input.Name}}
	case ScopeSystem:
		spec = cmdrun.Spec{Argv: []string{"sudo", "apt-get", "install", "-y", input.Name}}
	default:
		return cty.NilVal, fmt.Errorf("unknown install scope '%s' (expected '%s' or '%s')", input.Scope, ScopeUser, ScopeSystem)
	}

	logger.Info("Installing package", "name", input.Name, "scope", scope)

	if err := m.Runner.Run(ctx, spec); err != nil {
		return cty.NilVal, fmt.Errorf("failed to install package '%s': %w", input.Name, err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"name":  cty.StringVal(input.Name),
		"scope": cty.StringVal(scope),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("install_package", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       m.OnRunInstallPackage,
	})
}
