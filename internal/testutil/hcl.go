package testutil

import (
	"testing"

	"github.com/vk/labrig/internal/config"
)

// RunHCLRigTest provides a simplified harness for testing the loading of a
// single rig HCL string. It wraps the main integration test harness with a
// no_op stub module, so rigs written against the "no_op" kind parse, plan,
// and run without side effects.
func RunHCLRigTest(t *testing.T, rigHCL string) (*HarnessResult, []*config.Step) {
	t.Helper()

	files := map[string]string{
		"main.hcl": rigHCL,
	}

	result := RunIntegrationTest(t, files, &NoOpModule{})

	if result.App != nil && result.App.Model() != nil {
		return result, result.App.Model().Steps
	}

	return result, nil
}
