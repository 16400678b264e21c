package fetch_file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"github.com/vk/labrig/internal/workspace"
)

func boolPtr(b bool) *bool { return &b }

func digestOf(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// newHarness serves body at any path and returns a module rooted in a fresh
// temp workspace, plus a hit counter.
func newHarness(t *testing.T, handler http.HandlerFunc) (*Module, string, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := resty.New()
	t.Cleanup(func() { client.Close() })

	root := t.TempDir()
	ws, err := workspace.Open(root)
	require.NoError(t, err)

	return &Module{WS: ws, Client: client}, root, server
}

func serveBytes(hits *atomic.Int64, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte(body))
	}
}

func TestOnRunFetchFile_DownloadsUsingRemoteFilename(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "weights-bytes"))

	// --- Act ---
	out, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/media/files/yolov3.weights",
		Dest: "data",
	})

	// --- Assert ---
	require.NoError(t, err)
	final := filepath.Join(root, "data", "yolov3.weights")
	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "weights-bytes", string(content))
	assert.NoFileExists(t, final+".partial")

	assert.Equal(t, final, out.GetAttr("path").AsString())
	assert.False(t, out.GetAttr("skipped").True())
	size, _ := out.GetAttr("bytes").AsBigFloat().Int64()
	assert.Equal(t, int64(len("weights-bytes")), size)
}

func TestOnRunFetchFile_SkipsExistingNonEmptyFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "fresh"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "yolov3.weights"), []byte("already here"), 0o644))

	// --- Act ---
	out, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/yolov3.weights",
		Dest: "data",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Zero(t, hits.Load(), "no request should be made for a present file")
	assert.True(t, out.GetAttr("skipped").True())
	content, _ := os.ReadFile(filepath.Join(root, "data", "yolov3.weights"))
	assert.Equal(t, "already here", string(content))
}

func TestOnRunFetchFile_EmptyExistingFileIsReplaced(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "fresh"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "model.bin"), nil, 0o644))

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/model.bin",
		Dest: "data",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
	content, _ := os.ReadFile(filepath.Join(root, "data", "model.bin"))
	assert.Equal(t, "fresh", string(content))
}

func TestOnRunFetchFile_OverwriteRedownloads(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "fresh"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "model.bin"), []byte("stale"), 0o644))

	// --- Act ---
	out, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:       server.URL + "/model.bin",
		Dest:      "data",
		Overwrite: boolPtr(true),
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
	assert.False(t, out.GetAttr("skipped").True())
	content, _ := os.ReadFile(filepath.Join(root, "data", "model.bin"))
	assert.Equal(t, "fresh", string(content))
}

func TestOnRunFetchFile_ModuleWideOverwrite(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "fresh"))
	m.Overwrite = true
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "model.bin"), []byte("stale"), 0o644))

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/model.bin",
		Dest: "data",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestOnRunFetchFile_ExplicitFilenameWins(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "tarball"))

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:      server.URL + "/uc?export=download",
		Dest:     "data",
		Filename: "ssd_mobilenet.tar.gz",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "data", "ssd_mobilenet.tar.gz"))
}

func TestOnRunFetchFile_UsesServedFilename(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, root, server := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="served.bin"`)
		w.Write([]byte("payload"))
	})

	// --- Act ---
	out, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/download",
		Dest: "data",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "data", "served.bin"))
	assert.Equal(t, filepath.Join(root, "data", "served.bin"), out.GetAttr("path").AsString())
}

func TestOnRunFetchFile_VerifiesChecksum(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "weights-bytes"))

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:    server.URL + "/yolov3.weights",
		Dest:   "data",
		SHA256: digestOf("weights-bytes"),
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "data", "yolov3.weights"))
}

func TestOnRunFetchFile_ChecksumMismatchLeavesNothing(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var hits atomic.Int64
	m, root, server := newHarness(t, serveBytes(&hits, "corrupted"))

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:    server.URL + "/yolov3.weights",
		Dest:   "data",
		SHA256: digestOf("weights-bytes"),
	})

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha256 mismatch")
	assert.NoFileExists(t, filepath.Join(root, "data", "yolov3.weights"))
	assert.NoFileExists(t, filepath.Join(root, "data", "yolov3.weights.partial"))
}

func TestOnRunFetchFile_ServerErrorFails(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m, root, server := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	// --- Act ---
	_, err := m.OnRunFetchFile(context.Background(), &Input{
		URL:  server.URL + "/missing.bin",
		Dest: "data",
	})

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.NoFileExists(t, filepath.Join(root, "data", "missing.bin"))
	assert.NoFileExists(t, filepath.Join(root, "data", "missing.bin.partial"))
}

func TestRemoteFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "plain file", url: "https://pjreddie.com/media/files/yolov3.weights", want: "yolov3.weights"},
		{name: "query ignored", url: "https://example.com/archive.tar.gz?token=abc", want: "archive.tar.gz"},
		{name: "bare host", url: "https://example.com", wantErr: true},
		{name: "root path", url: "https://example.com/", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := remoteFilename(tc.url)

			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
