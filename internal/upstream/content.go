package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
)

// DefaultRawBaseURL is the raw-content host serving files from source branches.
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// ContentClient fetches raw files from an upstream source branch.
// Every fetch reports an explicit present/absent result: a missing file
// (HTTP 404) is not an error, it is an expected outcome callers branch on.
type ContentClient struct {
	// baseURL is the raw-content root, overridable for tests.
	baseURL string
	// client performs the HTTP calls, without a timeout like the release client.
	client *http.Client
}

// ContentOption customizes a ContentClient.
type ContentOption func(*ContentClient)

// WithRawBaseURL overrides the raw-content host root.
func WithRawBaseURL(baseURL string) ContentOption {
	return func(c *ContentClient) {
		c.baseURL = baseURL
	}
}

// WithContentHTTPClient overrides the HTTP client.
func WithContentHTTPClient(client *http.Client) ContentOption {
	return func(c *ContentClient) {
		c.client = client
	}
}

// NewContentClient creates a client for the raw-content host.
func NewContentClient(opts ...ContentOption) *ContentClient {
	c := &ContentClient{
		baseURL: DefaultRawBaseURL,
		client:  http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchString retrieves a file as text, reporting presence explicitly.
func (c *ContentClient) FetchString(
	ctx context.Context,
	src source.Source,
	branch, relPath string,
) (string, bool, error) {
	body, found, err := c.open(ctx, src, branch, relPath)
	if err != nil || !found {
		return "", found, err
	}

	defer func() {
		_ = body.Close()
	}()

	contents, err := io.ReadAll(body)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", relPath, err)
	}

	return strings.TrimSpace(string(contents)), true, nil
}

// Fetch retrieves a file into dest, reporting presence explicitly.
// Nothing is written when the file is absent.
func (c *ContentClient) Fetch(
	ctx context.Context,
	src source.Source,
	branch, relPath, dest string,
) (bool, error) {
	body, found, err := c.open(ctx, src, branch, relPath)
	if err != nil || !found {
		return found, err
	}

	defer func() {
		_ = body.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("create staging directory: %w", err)
	}

	out, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return false, fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err = io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)

		return false, fmt.Errorf("write %s: %w", dest, err)
	}

	if err = out.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", dest, err)
	}

	return true, nil
}

// open performs the raw-content request and maps 404 to an absent result.
func (c *ContentClient) open(
	ctx context.Context,
	src source.Source,
	branch, relPath string,
) (io.ReadCloser, bool, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s", c.baseURL, src.Owner, src.Project, branch, relPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, false, err
	}

	req.Header.Set("User-Agent", userAgent)

	response, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}

	switch response.StatusCode {
	case http.StatusOK:
		return response.Body, true, nil
	case http.StatusNotFound:
		_ = response.Body.Close()

		return nil, false, nil
	default:
		_ = response.Body.Close()

		return nil, false, fmt.Errorf("%s, %s: %w", endpoint, response.Status, errBadHTTPStatus)
	}
}
