package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/upstream"
)

// contentHost serves fastlane metadata files keyed by "<branch>/<relpath>".
func contentHost(t *testing.T, slug string, files map[string]string) *httptest.Server {
	t.Helper()

	prefix := "/" + slug + "/"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len(prefix):]
		if body, ok := files[key]; ok {
			_, _ = w.Write([]byte(body))
			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))

	t.Cleanup(ts.Close)

	return ts
}

func harvestOne(t *testing.T, files map[string]string) (string, source.Source) {
	t.Helper()

	src, err := source.Parse("NtWriteCode/pocket-id")
	require.NoError(t, err)

	ts := contentHost(t, src.Slug(), files)
	dataDir := t.TempDir()

	harvester := NewHarvester(upstream.NewContentClient(upstream.WithRawBaseURL(ts.URL)), dataDir)
	harvester.Harvest(context.Background(), []source.Source{src})

	return dataDir, src
}

// TestHarvester_StagesFullBundle verifies all bundle files land in the staging directory.
func TestHarvester_StagesFullBundle(t *testing.T) {
	t.Parallel()

	base := "main/fastlane/metadata/android/en-US/"
	dataDir, src := harvestOne(t, map[string]string{
		base + "title.txt":                     "My App\n",
		base + "short_description.txt":         "Short",
		base + "full_description.txt":          "Long description",
		base + "images/icon.png":               "icon-bytes",
		base + "images/phoneScreenshots/1.png": "shot-1",
		base + "images/phoneScreenshots/2.png": "shot-2",
	})

	bundle := BundleDir(dataDir, src)

	title, err := os.ReadFile(filepath.Join(bundle, TitleFile))
	require.NoError(t, err)
	require.Equal(t, "My App", string(title))

	for _, name := range []string{ShortDescriptionFile, FullDescriptionFile, IconFile} {
		_, err = os.Stat(filepath.Join(bundle, name))
		require.NoError(t, err, name)
	}

	for _, name := range []string{"1.png", "2.png"} {
		_, err = os.Stat(filepath.Join(bundle, ScreenshotsDir, name))
		require.NoError(t, err, name)
	}
}

// TestHarvester_BranchFallback verifies the second branch candidate is used
// when the first has no title document.
func TestHarvester_BranchFallback(t *testing.T) {
	t.Parallel()

	base := "master/fastlane/metadata/android/en-US/"
	dataDir, src := harvestOne(t, map[string]string{
		base + "title.txt": "Master App",
	})

	title, err := os.ReadFile(filepath.Join(BundleDir(dataDir, src), TitleFile))
	require.NoError(t, err)
	require.Equal(t, "Master App", string(title))
}

// TestHarvester_NoTitleNoBundle verifies a source without a title document
// on either branch leaves no staged bundle behind.
func TestHarvester_NoTitleNoBundle(t *testing.T) {
	t.Parallel()

	dataDir, src := harvestOne(t, map[string]string{
		"main/fastlane/metadata/android/en-US/short_description.txt": "Short",
	})

	_, err := os.Stat(BundleDir(dataDir, src))
	require.True(t, os.IsNotExist(err))
}

// TestHarvester_ScreenshotGapTerminates verifies a numbering gap stops
// screenshot collection even when later numbers exist.
func TestHarvester_ScreenshotGapTerminates(t *testing.T) {
	t.Parallel()

	base := "main/fastlane/metadata/android/en-US/"
	dataDir, src := harvestOne(t, map[string]string{
		base + "title.txt":                     "My App",
		base + "images/phoneScreenshots/1.png": "shot-1",
		base + "images/phoneScreenshots/3.png": "shot-3",
	})

	shots := filepath.Join(BundleDir(dataDir, src), ScreenshotsDir)

	_, err := os.Stat(filepath.Join(shots, "1.png"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(shots, "2.png"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(shots, "3.png"))
	require.True(t, os.IsNotExist(err))
}

// TestHarvester_MissingOptionalFilesTolerated verifies a bundle with only a
// title is still staged.
func TestHarvester_MissingOptionalFilesTolerated(t *testing.T) {
	t.Parallel()

	dataDir, src := harvestOne(t, map[string]string{
		"main/fastlane/metadata/android/en-US/title.txt": "Bare App",
	})

	bundle := BundleDir(dataDir, src)

	_, err := os.Stat(filepath.Join(bundle, TitleFile))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(bundle, IconFile))
	require.True(t, os.IsNotExist(err))
}
