package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/identity"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/upstream"
)

// fakeInspector resolves package names from a fixed table instead of real artifacts.
type fakeInspector struct {
	packages map[string]string
	err      error
}

func (f *fakeInspector) PackageName(path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	pkg, ok := f.packages[filepath.Base(path)]
	if !ok {
		return "", fmt.Errorf("no package for %s", path)
	}

	return pkg, nil
}

// releaseHost serves a latest release with one APK asset and counts artifact downloads.
func releaseHost(t *testing.T, slug, apkName string, downloads *atomic.Int64) *httptest.Server {
	t.Helper()

	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/" + slug + "/releases/latest":
			fmt.Fprintf(w, `{"tag_name":"v1.2","assets":[
				{"name":%q,"browser_download_url":%q},
				{"name":"notes.txt","browser_download_url":%q}
			]}`, apkName, ts.URL+"/dl/"+apkName, ts.URL+"/dl/notes.txt")
		case "/dl/" + apkName:
			downloads.Add(1)
			_, _ = w.Write([]byte("apk-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(ts.Close)

	return ts
}

// TestFetcher_DownloadsAndMaps verifies the first sweep downloads the artifact
// and records the identity mapping.
func TestFetcher_DownloadsAndMaps(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int64

	ts := releaseHost(t, "NtWriteCode/pocket-id", "app-1.2.apk", &downloads)

	dir := t.TempDir()
	repoDir := filepath.Join(dir, "repo")
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))
	inspector := &fakeInspector{packages: map[string]string{"app-1.2.apk": "org.pocketid.app"}}

	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, repoDir)

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	result := fetcher.Fetch(context.Background(), []source.Source{src})
	require.True(t, result.Downloaded)
	require.Equal(t, []source.Source{src}, result.Sources)
	require.EqualValues(t, 1, downloads.Load())

	_, err = os.Stat(filepath.Join(repoDir, "app-1.2.apk"))
	require.NoError(t, err)

	mapping := store.Load(context.Background())
	pkg, ok := mapping.Resolve(src)
	require.True(t, ok)
	require.Equal(t, "org.pocketid.app", pkg)
}

// TestFetcher_SecondSweepIsIdempotent verifies no re-download and an unchanged
// mapping when nothing new is released.
func TestFetcher_SecondSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int64

	ts := releaseHost(t, "NtWriteCode/pocket-id", "app-1.2.apk", &downloads)

	dir := t.TempDir()
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))
	inspector := &fakeInspector{packages: map[string]string{"app-1.2.apk": "org.pocketid.app"}}

	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, filepath.Join(dir, "repo"))

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	first := fetcher.Fetch(context.Background(), []source.Source{src})
	require.True(t, first.Downloaded)

	before := store.Load(context.Background())

	second := fetcher.Fetch(context.Background(), []source.Source{src})
	require.False(t, second.Downloaded)
	require.EqualValues(t, 1, downloads.Load())
	require.Equal(t, before, store.Load(context.Background()))
}

// TestFetcher_ExistingMappingIsAuthoritative verifies a mapped source is
// never re-resolved even when inspection would yield a different value.
func TestFetcher_ExistingMappingIsAuthoritative(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int64

	ts := releaseHost(t, "NtWriteCode/pocket-id", "app-1.3.apk", &downloads)

	dir := t.TempDir()
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), identity.Mapping{src.Slug(): "org.pocketid.app"}))

	inspector := &fakeInspector{packages: map[string]string{"app-1.3.apk": "org.pocketid.imposter"}}
	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, filepath.Join(dir, "repo"))

	result := fetcher.Fetch(context.Background(), []source.Source{src})
	require.True(t, result.Downloaded)

	pkg, ok := store.Load(context.Background()).Resolve(src)
	require.True(t, ok)
	require.Equal(t, "org.pocketid.app", pkg)
}

// TestFetcher_SourceFailureIsIsolated verifies one failing source does not
// stop the remaining ones and still appears in the processed list.
func TestFetcher_SourceFailureIsIsolated(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int64

	ts := releaseHost(t, "good/app", "good-1.0.apk", &downloads)

	dir := t.TempDir()
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))
	inspector := &fakeInspector{packages: map[string]string{"good-1.0.apk": "com.example.good"}}

	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, filepath.Join(dir, "repo"))

	bad, err := source.Parse("bad/app")
	require.NoError(t, err)
	good, err := source.Parse("good/app")
	require.NoError(t, err)

	result := fetcher.Fetch(context.Background(), []source.Source{bad, good})
	require.True(t, result.Downloaded)
	require.Equal(t, []source.Source{bad, good}, result.Sources)

	_, ok := store.Load(context.Background()).Resolve(good)
	require.True(t, ok)
}

// TestFetcher_PartialFailureKeepsDownloadedFlag verifies an artifact that
// landed before a later asset of the same release failed still marks the
// sweep as downloaded. Losing the flag here would be permanent: the skip
// on the next sweep means the artifact is never picked up again.
func TestFetcher_PartialFailureKeepsDownloadedFlag(t *testing.T) {
	t.Parallel()

	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/NtWriteCode/pocket-id/releases/latest":
			fmt.Fprintf(w, `{"tag_name":"v1.2","assets":[
				{"name":"good.apk","browser_download_url":%q},
				{"name":"bad.apk","browser_download_url":%q}
			]}`, ts.URL+"/dl/good.apk", ts.URL+"/dl/bad.apk")
		case "/dl/good.apk":
			_, _ = w.Write([]byte("apk-bytes"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	repoDir := filepath.Join(dir, "repo")
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))
	inspector := &fakeInspector{packages: map[string]string{"good.apk": "com.example.good"}}

	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, repoDir)

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	result := fetcher.Fetch(context.Background(), []source.Source{src})
	require.True(t, result.Downloaded)

	_, err = os.Stat(filepath.Join(repoDir, "good.apk"))
	require.NoError(t, err)

	pkg, ok := store.Load(context.Background()).Resolve(src)
	require.True(t, ok)
	require.Equal(t, "com.example.good", pkg)
}

// TestFetcher_InspectionFailureDoesNotAbort verifies an inspection error
// leaves the source unmapped but keeps the downloaded artifact.
func TestFetcher_InspectionFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int64

	ts := releaseHost(t, "NtWriteCode/pocket-id", "app-1.2.apk", &downloads)

	dir := t.TempDir()
	repoDir := filepath.Join(dir, "repo")
	store := identity.NewFileStore(filepath.Join(dir, "mapping.json"))
	inspector := &fakeInspector{err: fmt.Errorf("manifest unreadable")}

	fetcher := NewFetcher(
		upstream.NewReleaseClient(upstream.WithAPIBaseURL(ts.URL)),
		store, inspector, repoDir)

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	result := fetcher.Fetch(context.Background(), []source.Source{src})
	require.True(t, result.Downloaded)

	_, err = os.Stat(filepath.Join(repoDir, "app-1.2.apk"))
	require.NoError(t, err)

	_, ok := store.Load(context.Background()).Resolve(src)
	require.False(t, ok)
}
