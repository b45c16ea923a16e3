package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/inspect"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/identity"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/upstream"
)

// artifactExtension is the only release-asset extension pulled into the repository.
const artifactExtension = ".apk"

// Fetcher downloads new release artifacts and resolves their package identity.
type Fetcher struct {
	// releases queries the release host and downloads assets.
	releases *upstream.ReleaseClient
	// identities persists the source-to-package mapping across cycles.
	identities identity.Store
	// inspector extracts package identifiers from downloaded artifacts.
	inspector inspect.Inspector
	// repoDir is the flat artifact directory of the repository.
	repoDir string
}

// Result reports the outcome of one fetch sweep.
type Result struct {
	// Downloaded is true when at least one new artifact was obtained.
	Downloaded bool
	// Sources lists every source that was processed, including ones
	// that failed individually; downstream stages use the full list.
	Sources []source.Source
}

// NewFetcher creates an artifact fetcher.
func NewFetcher(
	releases *upstream.ReleaseClient,
	identities identity.Store,
	inspector inspect.Inspector,
	repoDir string,
) *Fetcher {
	return &Fetcher{
		releases:   releases,
		identities: identities,
		inspector:  inspector,
		repoDir:    repoDir,
	}
}

// Fetch sweeps all sources for new release artifacts. A failure for one
// source is logged and does not stop the remaining sources; the identity
// mapping is persisted once after the sweep.
func (f *Fetcher) Fetch(ctx context.Context, sources []source.Source) Result {
	result := Result{Sources: sources}

	if err := os.MkdirAll(f.repoDir, 0o755); err != nil {
		logger.ErrorKV(ctx, "Unable to create repository directory", "path", f.repoDir, "error", err)
		return result
	}

	mapping := f.identities.Load(ctx)

	for _, src := range sources {
		logger.InfoKV(ctx, "Checking source", "source", src.Slug())

		downloaded, err := f.fetchSource(ctx, src, mapping)
		// A partial sweep still counts: an artifact obtained before the
		// failure is on disk now and will never be re-downloaded, so the
		// flag must be set this cycle or the artifact is never indexed.
		if downloaded {
			result.Downloaded = true
		}

		if err != nil {
			logger.ErrorKV(ctx, "Source fetch failed", "source", src.Slug(), "error", err)
			continue
		}
	}

	if err := f.identities.Save(ctx, mapping); err != nil {
		logger.WarnKV(ctx, "Unable to persist identity mapping", "error", err)
	}

	return result
}

// fetchSource processes one source: downloads new artifacts and resolves
// the package identity from the first locally available artifact when the
// source is not mapped yet.
func (f *Fetcher) fetchSource(ctx context.Context, src source.Source, mapping identity.Mapping) (bool, error) {
	release, err := f.releases.LatestRelease(ctx, src)
	if err != nil {
		return false, fmt.Errorf("query latest release: %w", err)
	}

	var downloaded bool

	for _, asset := range release.Assets {
		if !strings.HasSuffix(asset.Name, artifactExtension) {
			continue
		}

		// Asset names come from an external host; never let them escape the repo dir.
		target := filepath.Join(f.repoDir, filepath.Base(asset.Name))

		obtained, err := f.downloadArtifact(ctx, asset, target)
		if err != nil {
			return downloaded, err
		}

		if obtained {
			downloaded = true
		}

		f.resolveIdentity(ctx, src, mapping, target)
	}

	return downloaded, nil
}

// downloadArtifact fetches one asset unless a file of that name already
// exists, which keeps retried cycles idempotent.
func (f *Fetcher) downloadArtifact(ctx context.Context, asset upstream.Asset, target string) (bool, error) {
	if _, err := os.Stat(target); err == nil {
		logger.InfoKV(ctx, "Artifact already exists, skipping", "artifact", filepath.Base(target))
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	logger.InfoKV(ctx, "Downloading artifact", "artifact", filepath.Base(target))

	if err := f.releases.Download(ctx, asset.DownloadURL, target); err != nil {
		return false, fmt.Errorf("download %s: %w", asset.Name, err)
	}

	logger.InfoKV(ctx, "Downloaded artifact", "artifact", filepath.Base(target))

	return true, nil
}

// resolveIdentity maps the source to a package identifier from the artifact
// on disk. An existing mapping is authoritative; inspection failures are
// logged and do not abort the fetch.
func (f *Fetcher) resolveIdentity(ctx context.Context, src source.Source, mapping identity.Mapping, target string) {
	if _, ok := mapping.Resolve(src); ok {
		return
	}

	if _, err := os.Stat(target); err != nil {
		return
	}

	pkg, err := f.inspector.PackageName(target)
	if err != nil {
		logger.WarnKV(ctx, "Unable to extract package identifier",
			"source", src.Slug(), "artifact", filepath.Base(target), "error", err)

		return
	}

	mapping.Record(src, pkg)
	logger.InfoKV(ctx, "Mapped source to package", "source", src.Slug(), "package", pkg)
}
