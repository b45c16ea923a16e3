package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
)

func testSource(t *testing.T) source.Source {
	t.Helper()

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	return src
}

// TestReleaseClient_LatestRelease verifies endpoint shape, headers and decoding.
func TestReleaseClient_LatestRelease(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/NtWriteCode/pocket-id/releases/latest", r.URL.Path)
		require.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		require.NotEmpty(t, r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`{
			"tag_name": "v1.2",
			"assets": [
				{"name": "app-1.2.apk", "browser_download_url": "https://example.com/app-1.2.apk"},
				{"name": "checksums.txt", "browser_download_url": "https://example.com/checksums.txt"}
			]
		}`))
	}))
	defer ts.Close()

	client := NewReleaseClient(WithAPIBaseURL(ts.URL))

	release, err := client.LatestRelease(context.Background(), testSource(t))
	require.NoError(t, err)
	require.Equal(t, "v1.2", release.TagName)
	require.Len(t, release.Assets, 2)
	require.Equal(t, "app-1.2.apk", release.Assets[0].Name)
}

// TestReleaseClient_LatestRelease_BadStatus verifies non-200 responses are errors.
func TestReleaseClient_LatestRelease_BadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewReleaseClient(WithAPIBaseURL(ts.URL))

	_, err := client.LatestRelease(context.Background(), testSource(t))
	require.Error(t, err)
}

// TestReleaseClient_Download verifies streaming to disk without leftover temp files.
func TestReleaseClient_Download(t *testing.T) {
	t.Parallel()

	body := []byte("apk-bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "repo", "app-1.2.apk")
	client := NewReleaseClient()

	require.NoError(t, client.Download(context.Background(), ts.URL+"/app-1.2.apk", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, body, got)

	_, err = os.Stat(dest + ".tmp")
	require.True(t, os.IsNotExist(err))
}

// TestReleaseClient_Download_BadStatus verifies nothing is written on failure.
func TestReleaseClient_Download_BadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "app-1.2.apk")
	client := NewReleaseClient()

	require.Error(t, client.Download(context.Background(), ts.URL+"/app-1.2.apk", dest))

	_, err := os.Stat(dest)
	require.True(t, os.IsNotExist(err))
}

// TestContentClient_FetchString verifies present, absent and failed outcomes are distinct.
func TestContentClient_FetchString(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/NtWriteCode/pocket-id/main/fastlane/metadata/android/en-US/title.txt":
			_, _ = w.Write([]byte("My App\n"))
		case "/NtWriteCode/pocket-id/master/fastlane/metadata/android/en-US/title.txt":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	client := NewContentClient(WithRawBaseURL(ts.URL))
	src := testSource(t)

	title, found, err := client.FetchString(
		context.Background(), src, "main", "fastlane/metadata/android/en-US/title.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "My App", title)

	_, found, err = client.FetchString(
		context.Background(), src, "master", "fastlane/metadata/android/en-US/title.txt")
	require.NoError(t, err)
	require.False(t, found)

	_, _, err = client.FetchString(context.Background(), src, "main", "broken.txt")
	require.Error(t, err)
}

// TestContentClient_Fetch verifies file staging and that absent files write nothing.
func TestContentClient_Fetch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/NtWriteCode/pocket-id/main/fastlane/metadata/android/en-US/images/icon.png" {
			_, _ = w.Write([]byte("png-bytes"))
			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewContentClient(WithRawBaseURL(ts.URL))
	src := testSource(t)
	dir := t.TempDir()

	dest := filepath.Join(dir, "bundle", "icon.png")
	found, err := client.Fetch(
		context.Background(), src, "main", "fastlane/metadata/android/en-US/images/icon.png", dest)
	require.NoError(t, err)
	require.True(t, found)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), got)

	absent := filepath.Join(dir, "bundle", "missing.png")
	found, err = client.Fetch(context.Background(), src, "main", "missing.png", absent)
	require.NoError(t, err)
	require.False(t, found)

	_, err = os.Stat(absent)
	require.True(t, os.IsNotExist(err))
}
