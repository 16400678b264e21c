package cmdrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	runner := NewExecRunner()

	// --- Act ---
	err := runner.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo ok > marker.txt"},
		Dir:  dir,
	})

	// --- Assert ---
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data))
}

func TestExecRunner_FailureIncludesOutput(t *testing.T) {
	t.Parallel()

	runner := NewExecRunner()

	err := runner.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo boom >&2; exit 3"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	t.Parallel()

	err := NewExecRunner().Run(context.Background(), Spec{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty command")
}

func TestExecRunner_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecRunner().Run(ctx, Spec{Argv: []string{"sleep", "30"}})

	require.Error(t, err)
}

func TestRecordingRunner(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	boom := errors.New("install exploded")
	runner := &RecordingRunner{
		Err:    boom,
		FailOn: func(spec Spec) bool { return spec.Argv[0] == "apt-get" },
	}

	// --- Act ---
	okErr := runner.Run(context.Background(), Spec{Argv: []string{"pip", "install", "--user", "gdown"}})
	failErr := runner.Run(context.Background(), Spec{Argv: []string{"apt-get", "install", "-y", "python-tk"}})

	// --- Assert ---
	assert.NoError(t, okErr)
	assert.ErrorIs(t, failErr, boom)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pip", calls[0].Argv[0])
	assert.Equal(t, "apt-get", calls[1].Argv[0])
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", tail("  short \n", 100))
	assert.Len(t, tail(strings.Repeat("x", 5000), 64), 67)
}
