package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertStepRan checks the log output within a HarnessResult to confirm that a
// specific step completed. It abstracts the underlying log format, making
// tests more resilient to internal refactoring.
func AssertStepRan(t *testing.T, result *HarnessResult, kind, stepName string) {
	t.Helper()
	requireStepLine(t, result, "✅ Finished step", kind, stepName)
}

// AssertStepSkipped checks the log output within a HarnessResult to confirm
// that a specific step was skipped after an earlier failure.
func AssertStepSkipped(t *testing.T, result *HarnessResult, kind, stepName string) {
	t.Helper()
	requireStepLine(t, result, "⏭️ Step skipped.", kind, stepName)
}

func requireStepLine(t *testing.T, result *HarnessResult, message, kind, stepName string) {
	t.Helper()

	stepAttr := fmt.Sprintf("step=step.%s.%s", kind, stepName)
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, message) && strings.Contains(line, stepAttr) {
			return
		}
	}
	require.Failf(t, "missing log line",
		"expected a %q log line for step '%s.%s', got:\n%s", message, kind, stepName, result.LogOutput)
}
