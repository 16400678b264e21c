// Package gdrive resolves drive-hosted file identifiers into direct byte
// streams. Public share links answer small files directly; large files get
// an HTML confirmation page instead, and the real stream is only served
// once the embedded form is replayed with its cookies intact.
package gdrive

import (
	"context"
	"fmt"
	"html"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/vk/labrig/internal/ctxlog"
)

// maxInterstitialSize bounds how much of an HTML answer is read back when
// hunting for the confirmation form.
const maxInterstitialSize = 8 << 20

// Downloader resolves a drive-hosted file identifier and writes its
// content to dest, returning the number of bytes written.
type Downloader interface {
	Fetch(ctx context.Context, fileID string, dest string) (int64, error)
}

// Client is the live Downloader.
type Client struct {
	http    *resty.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host. Tests use this to
// run the confirmation flow against a local fake.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout bounds each transfer. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient creates a drive client with a fresh cookie jar. The jar is
// what carries the consent cookies between the confirmation page and the
// follow-up request.
func NewClient(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		http:    resty.New().SetCookieJar(jar),
		baseURL: "https://drive.google.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// Fetch downloads the file behind fileID into dest. The transfer streams
// into dest.partial and is renamed on success, so a failed attempt never
// clobbers an existing artifact.
func (c *Client) Fetch(ctx context.Context, fileID string, dest string) (int64, error) {
	logger := ctxlog.FromContext(ctx)

	if fileID == "" {
		return 0, fmt.Errorf("empty drive file id")
	}

	partial := dest + ".partial"
	defer os.Remove(partial)

	directURL := c.baseURL + "/uc"
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"export": "download", "id": fileID}).
		SetSaveResponse(true).
		SetOutputFileName(partial).
		Get(directURL)
	if err != nil {
		return 0, fmt.Errorf("drive request for %s failed: %w", fileID, err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("drive returned status %d for file %s", res.StatusCode(), fileID)
	}

	if isInterstitial(res.Header().Get("Content-Type"), res.Header().Get("Content-Disposition")) {
		logger.Debug("Drive answered with a confirmation page, replaying its form.", "file_id", fileID)

		page, err := readInterstitial(partial)
		if err != nil {
			return 0, err
		}
		os.Remove(partial)

		confirmURL, params, ok := confirmRequest(page, directURL, fileID)
		if !ok {
			return 0, fmt.Errorf("file %s is not downloadable (no confirmation token in drive response)", fileID)
		}
		if strings.HasPrefix(confirmURL, "/") {
			confirmURL = c.baseURL + confirmURL
		}

		res, err = c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			SetSaveResponse(true).
			SetOutputFileName(partial).
			Get(confirmURL)
		if err != nil {
			return 0, fmt.Errorf("drive confirm request for %s failed: %w", fileID, err)
		}
		if res.IsError() {
			return 0, fmt.Errorf("drive returned status %d on confirm for file %s", res.StatusCode(), fileID)
		}
		if isInterstitial(res.Header().Get("Content-Type"), res.Header().Get("Content-Disposition")) {
			return 0, fmt.Errorf("file %s is not downloadable (quota exceeded or permission denied)", fileID)
		}
	}

	info, err := os.Stat(partial)
	if err != nil {
		return 0, fmt.Errorf("drive download for %s produced no file: %w", fileID, err)
	}
	if err := os.Rename(partial, dest); err != nil {
		return 0, fmt.Errorf("failed to move downloaded file into place: %w", err)
	}

	logger.Debug("Drive download complete.", "file_id", fileID, "bytes", info.Size())
	return info.Size(), nil
}

// isInterstitial reports whether a response looks like the HTML
// confirmation page rather than file content.
func isInterstitial(contentType, disposition string) bool {
	return strings.Contains(contentType, "text/html") && !strings.Contains(disposition, "attachment")
}

// readInterstitial loads a saved HTML answer, guarding against a
// surprisingly large body.
func readInterstitial(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read drive confirmation page: %w", err)
	}
	if info.Size() > maxInterstitialSize {
		return "", fmt.Errorf("drive confirmation page unexpectedly large (%d bytes)", info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read drive confirmation page: %w", err)
	}
	return string(data), nil
}

var (
	formRe    = regexp.MustCompile(`(?s)<form[^>]*action="([^"]+)"[^>]*>(.*?)</form>`)
	inputRe   = regexp.MustCompile(`<input[^>]*name="([^"]+)"[^>]*value="([^"]*)"`)
	confirmRe = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)
)

// confirmRequest extracts the follow-up request encoded in a confirmation
// page. Newer pages embed a form whose hidden inputs must be replayed
// verbatim; older ones only scatter a confirm token into links, in which
// case the original uc endpoint is retried with that token.
func confirmRequest(page string, directURL string, fileID string) (string, url.Values, bool) {
	if m := formRe.FindStringSubmatch(page); m != nil {
		action := html.UnescapeString(m[1])
		params := url.Values{}
		for _, input := range inputRe.FindAllStringSubmatch(m[2], -1) {
			params.Set(input[1], html.UnescapeString(input[2]))
		}
		return action, params, true
	}

	if m := confirmRe.FindStringSubmatch(page); m != nil {
		params := url.Values{}
		params.Set("export", "download")
		params.Set("id", fileID)
		params.Set("confirm", m[1])
		return directURL, params, true
	}

	return "", nil, false
}
