package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/labrig/internal/app"
	"github.com/vk/labrig/internal/hclrig"
	"github.com/vk/labrig/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput    string
	Err          error
	App          *app.App
	WorkspaceDir string
}

// RunIntegrationTest provides a standardized harness for running integration tests
// using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, modules...)
}

// RunIntegrationTestWithContext provides a standardized harness for running
// integration tests with a specific context provided by the caller.
//
// It writes the given rig files into a temporary rig directory, creates a
// fresh workspace directory next to it, and drives a full app.Run with the
// supplied modules standing in for the real ones. Tests assert on the
// returned error, the captured logs, and the files left in WorkspaceDir.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	// 1. Create a temporary root directory for the test.
	tmpDir, err := os.MkdirTemp("", ".tmp-integration-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	rigDir := filepath.Join(tmpDir, "rig")
	workspaceDir := filepath.Join(tmpDir, "workspace")
	require.NoError(t, os.Mkdir(rigDir, 0755))
	require.NoError(t, os.Mkdir(workspaceDir, 0755))

	// 2. Write all rig files to the temporary rig directory. The test
	//    provides relative paths (e.g. "main.hcl" or "extra/more.hcl"),
	//    which naturally creates the subdirectory structure.
	for name, content := range files {
		filePath := filepath.Join(rigDir, name)
		dir := filepath.Dir(filePath)
		require.NoError(t, os.MkdirAll(dir, 0755))
		err = os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err)
	}

	// 3. Point the app at the rig directory and the isolated workspace.
	//    The -workspace override wins over any workspace block in the rig,
	//    so tests never touch a real dependencies directory.
	appConfig := &app.Config{
		RigPath:   rigDir,
		Workspace: workspaceDir,
		LogLevel:  "debug",
		LogFormat: "text",
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				if os.Getenv("LABRIG_TEST_LOGS") == "true" {
					t.Logf("--- HARNESS RECOVERED PANIC ---\n%q", fmt.Sprintf("%v", r))
				}
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hclrig.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput:    logBuffer.String(),
			Err:          fmt.Errorf("application startup panicked | %v", panicErr),
			App:          nil,
			WorkspaceDir: workspaceDir,
		}
	}

	runErr := testApp.Run(ctx, appConfig)

	if os.Getenv("LABRIG_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput:    logBuffer.String(),
		Err:          runErr,
		App:          testApp,
		WorkspaceDir: workspaceDir,
	}
}
