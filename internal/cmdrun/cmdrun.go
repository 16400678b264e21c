// Package cmdrun is the capability boundary around external tool
// invocation. Modules describe a command with a Spec and hand it to a
// Runner; tests substitute a recording stub so no real process runs.
package cmdrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/labrig/internal/ctxlog"
)

// Spec describes one external command invocation.
type Spec struct {
	// Argv is the command and its arguments. Argv[0] is resolved via PATH.
	Argv []string
	// Dir is the working directory. Empty means the process's own.
	Dir string
	// Env holds additional KEY=VALUE entries appended to the inherited
	// environment.
	Env []string
}

// String renders the spec for logs.
func (s Spec) String() string {
	return strings.Join(s.Argv, " ")
}

// Runner executes external commands on behalf of step modules.
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// ExecRunner is the live Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns the live command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command, capturing combined output. On failure the
// tail of the output is folded into the returned error so the failing
// tool's message survives into the run report.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	logger := ctxlog.FromContext(ctx)

	if len(spec.Argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("Running command.", "argv", spec.String(), "dir", spec.Dir)
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("command %q failed: %w\noutput: %s", spec.String(), err, tail(output.String(), 2048))
	}

	logger.Debug("Command finished.", "argv", spec.Argv[0])
	return nil
}

// tail returns at most n trailing bytes of s, trimmed of whitespace.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
