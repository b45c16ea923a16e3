package harvest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/upstream"
)

// Staged bundle layout shared with the reconciler.
const (
	// BundlePrefix names staged metadata bundle directories inside the data dir.
	BundlePrefix = ".staged_metadata_"

	// TitleFile is the mandatory bundle file; its presence upstream decides
	// whether a source has harvestable metadata at all.
	TitleFile = "title.txt"

	// ShortDescriptionFile holds the one-line summary.
	ShortDescriptionFile = "short_description.txt"

	// FullDescriptionFile holds the long description.
	FullDescriptionFile = "full_description.txt"

	// IconFile is the package icon image.
	IconFile = "icon.png"

	// ScreenshotsDir holds sequentially numbered screenshot images.
	ScreenshotsDir = "phoneScreenshots"
)

// metadataPath is the fastlane metadata root on upstream source branches.
const metadataPath = "fastlane/metadata/android/en-US"

// maxScreenshots bounds the sequential screenshot probe.
const maxScreenshots = 8

// branchCandidates are probed in order; the first branch serving the title
// document is authoritative and no other branch is tried.
//
//nolint:gochecknoglobals // Fixed probe order, never mutated.
var branchCandidates = []string{"main", "master"}

// BundleDir returns the staging directory for a source's metadata bundle.
func BundleDir(dataDir string, src source.Source) string {
	return filepath.Join(dataDir, BundlePrefix+src.Key())
}

// Harvester stages optional descriptive metadata bundles from upstream
// source branches into per-source directories under the data dir.
type Harvester struct {
	// content fetches raw files from upstream source branches.
	content *upstream.ContentClient
	// dataDir is the root under which bundles are staged.
	dataDir string
}

// NewHarvester creates a metadata harvester.
func NewHarvester(content *upstream.ContentClient, dataDir string) *Harvester {
	return &Harvester{
		content: content,
		dataDir: dataDir,
	}
}

// Harvest stages a metadata bundle for every source that serves the
// mandatory title document. Failures are isolated per source.
func (h *Harvester) Harvest(ctx context.Context, sources []source.Source) {
	for _, src := range sources {
		logger.InfoKV(ctx, "Fetching metadata", "source", src.Slug())

		if err := h.harvestSource(ctx, src); err != nil {
			logger.ErrorKV(ctx, "Metadata harvest failed", "source", src.Slug(), "error", err)
		}
	}
}

// harvestSource probes the branch candidates and stages the bundle for the
// first branch serving the title document. Optional files are best effort.
func (h *Harvester) harvestSource(ctx context.Context, src source.Source) error {
	branch, title, found := h.locateMetadata(ctx, src)
	if !found {
		logger.InfoKV(ctx, "No metadata found", "source", src.Slug())
		return nil
	}

	logger.InfoKV(ctx, "Found metadata", "source", src.Slug(), "branch", branch)

	bundleDir := BundleDir(h.dataDir, src)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}

	titlePath := filepath.Join(bundleDir, TitleFile)
	if err := os.WriteFile(titlePath, []byte(title), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write title: %w", err)
	}

	optional := map[string]string{
		ShortDescriptionFile: ShortDescriptionFile,
		FullDescriptionFile:  FullDescriptionFile,
		IconFile:             path.Join("images", IconFile),
	}
	for name, relPath := range optional {
		h.fetchOptional(ctx, src, branch, relPath, filepath.Join(bundleDir, name))
	}

	h.fetchScreenshots(ctx, src, branch, bundleDir)

	return nil
}

// locateMetadata tries each branch candidate in order and returns the first
// branch serving the title document, or an explicit not-found result.
func (h *Harvester) locateMetadata(ctx context.Context, src source.Source) (string, string, bool) {
	for _, branch := range branchCandidates {
		title, found, err := h.content.FetchString(ctx, src, branch, path.Join(metadataPath, TitleFile))
		if err != nil {
			logger.WarnKV(ctx, "Title probe failed", "source", src.Slug(), "branch", branch, "error", err)
			continue
		}

		if found {
			return branch, title, true
		}
	}

	return "", "", false
}

// fetchOptional stages one optional bundle file; absence and failure are
// both tolerated, but only failure is worth a log line.
func (h *Harvester) fetchOptional(ctx context.Context, src source.Source, branch, relPath, dest string) {
	found, err := h.content.Fetch(ctx, src, branch, path.Join(metadataPath, relPath), dest)
	if err != nil {
		logger.WarnKV(ctx, "Optional metadata fetch failed",
			"source", src.Slug(), "file", relPath, "error", err)

		return
	}

	if found {
		logger.InfoKV(ctx, "Staged metadata file", "source", src.Slug(), "file", relPath)
	}
}

// fetchScreenshots stages screenshots numbered from 1; the first missing
// number terminates collection, so images are contiguous.
func (h *Harvester) fetchScreenshots(ctx context.Context, src source.Source, branch, bundleDir string) {
	for i := 1; i <= maxScreenshots; i++ {
		name := strconv.Itoa(i) + ".png"
		relPath := path.Join(metadataPath, "images", ScreenshotsDir, name)
		dest := filepath.Join(bundleDir, ScreenshotsDir, name)

		found, err := h.content.Fetch(ctx, src, branch, relPath, dest)
		if err != nil {
			logger.WarnKV(ctx, "Screenshot fetch failed",
				"source", src.Slug(), "screenshot", name, "error", err)

			return
		}

		if !found {
			return
		}

		logger.InfoKV(ctx, "Staged screenshot", "source", src.Slug(), "screenshot", name)
	}
}
