package make_dir

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/labrig/internal/workspace"
)

func newModule(t *testing.T) (*Module, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.Open(root)
	require.NoError(t, err)
	return &Module{WS: ws}, root
}

func TestOnRunMakeDir_CreatesNestedDirectories(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, root := newModule(t)

	// --- Act ---
	out, err := m.OnRunMakeDir(context.Background(), &Input{Path: "data/models/ssd"})

	// --- Assert ---
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "data", "models", "ssd"))
	assert.Equal(t, filepath.Join(root, "data", "models", "ssd"), out.GetAttr("path").AsString())
}

func TestOnRunMakeDir_ExistingDirectoryIsSuccess(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, root := newModule(t)
	_, err := m.OnRunMakeDir(context.Background(), &Input{Path: "data"})
	require.NoError(t, err)

	// --- Act ---
	_, err = m.OnRunMakeDir(context.Background(), &Input{Path: "data"})

	// --- Assert ---
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "data"))
}

func TestOnRunMakeDir_RejectsPathOutsideWorkspace(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, _ := newModule(t)

	testCases := []struct {
		name string
		path string
	}{
		{name: "absolute", path: "/etc/labrig"},
		{name: "escaping", path: "../outside"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Act ---
			_, err := m.OnRunMakeDir(context.Background(), &Input{Path: tc.path})

			// --- Assert ---
			require.Error(t, err)
		})
	}
}
