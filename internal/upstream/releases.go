package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
)

// DefaultAPIBaseURL is the release host queried for latest releases.
const DefaultAPIBaseURL = "https://api.github.com"

// userAgent identifies this service to the upstream hosts.
const userAgent = "fdroid-github-tracker"

// errBadHTTPStatus is returned for unexpected upstream HTTP statuses.
var errBadHTTPStatus = fmt.Errorf("unexpected http status")

// Asset is one downloadable file attached to an upstream release.
type Asset struct {
	// Name is the artifact filename.
	Name string `json:"name"`
	// DownloadURL is the direct download location.
	DownloadURL string `json:"browser_download_url"`
}

// Release is the latest-release response of the release host.
type Release struct {
	// TagName is the release tag.
	TagName string `json:"tag_name"`
	// Assets lists the downloadable files of the release.
	Assets []Asset `json:"assets"`
}

// ReleaseClient queries the release host and downloads artifacts.
type ReleaseClient struct {
	// baseURL is the API root, overridable for tests.
	baseURL string
	// client performs the HTTP calls. Deliberately without a timeout:
	// all pipeline operations are synchronous and blocking.
	client *http.Client
}

// ReleaseOption customizes a ReleaseClient.
type ReleaseOption func(*ReleaseClient)

// WithAPIBaseURL overrides the release host API root.
func WithAPIBaseURL(baseURL string) ReleaseOption {
	return func(c *ReleaseClient) {
		c.baseURL = baseURL
	}
}

// WithReleaseHTTPClient overrides the HTTP client.
func WithReleaseHTTPClient(client *http.Client) ReleaseOption {
	return func(c *ReleaseClient) {
		c.client = client
	}
}

// NewReleaseClient creates a client for the release host.
func NewReleaseClient(opts ...ReleaseOption) *ReleaseClient {
	c := &ReleaseClient{
		baseURL: DefaultAPIBaseURL,
		client:  http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LatestRelease queries the latest-release endpoint for the source.
func (c *ReleaseClient) LatestRelease(ctx context.Context, src source.Source) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, src.Slug())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)

	response, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", endpoint, response.Status, errBadHTTPStatus)
	}

	var release Release
	if err = json.NewDecoder(response.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode latest release: %w", err)
	}

	return &release, nil
}

// Download streams the asset at the provided URL into dest.
// The payload lands in a temporary file first and is renamed into place,
// so an interrupted download never leaves a partial artifact behind.
func (c *ReleaseClient) Download(ctx context.Context, downloadURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", userAgent)

	response, err := c.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", downloadURL, response.Status, errBadHTTPStatus)
	}

	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	temporary := dest + ".tmp"

	out, err := os.Create(filepath.Clean(temporary))
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}

	if _, err = io.Copy(out, response.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(temporary)

		return fmt.Errorf("write artifact: %w", err)
	}

	if err = out.Close(); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("close artifact file: %w", err)
	}

	if err = os.Rename(temporary, dest); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("replace artifact: %w", err)
	}

	return nil
}
