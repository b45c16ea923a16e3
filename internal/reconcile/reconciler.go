package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/harvest"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/identity"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/pkgmeta"
)

// assetPermissions keeps published assets readable by the web server.
const assetPermissions = 0o644

// Reconciler merges staged metadata bundles into the persistent package
// records and published asset layout.
type Reconciler struct {
	// identities resolves bundle directories back to package identifiers.
	identities identity.Store
	// records persists per-package metadata documents.
	records *pkgmeta.Store
	// dataDir is the root holding staged bundle directories.
	dataDir string
}

// NewReconciler creates a metadata reconciler.
func NewReconciler(identities identity.Store, records *pkgmeta.Store, dataDir string) *Reconciler {
	return &Reconciler{
		identities: identities,
		records:    records,
		dataDir:    dataDir,
	}
}

// Apply processes every staged bundle on disk and deletes all of them
// afterwards, matched or not. Failures are isolated per bundle.
func (r *Reconciler) Apply(ctx context.Context) {
	bundles, err := r.listBundles()
	if err != nil {
		logger.ErrorKV(ctx, "Unable to list staged bundles", "error", err)
		return
	}

	// Bundles are transient: whatever happens above, none survive the cycle.
	defer r.cleanup(ctx, bundles)

	mapping := r.identities.Load(ctx)

	for _, bundleDir := range bundles {
		key := strings.TrimPrefix(filepath.Base(bundleDir), harvest.BundlePrefix)

		src, pkg, ok := mapping.MatchKey(key)
		if !ok {
			logger.WarnKV(ctx, "No package identity for staged bundle, skipping", "bundle", key)
			continue
		}

		logger.InfoKV(ctx, "Applying metadata", "package", pkg, "source", src.Slug())

		if err = r.applyBundle(ctx, bundleDir, src, pkg); err != nil {
			logger.ErrorKV(ctx, "Unable to apply metadata", "package", pkg, "error", err)
			continue
		}

		logger.InfoKV(ctx, "Applied metadata", "package", pkg)
	}
}

// listBundles finds all staged bundle directories under the data dir.
func (r *Reconciler) listBundles() ([]string, error) {
	return filepath.Glob(filepath.Join(r.dataDir, harvest.BundlePrefix+"*"))
}

// applyBundle merges one bundle into the package record and asset layout.
// The source is the bundle's own, bound explicitly: author and link fields
// must never leak from a previously processed bundle.
func (r *Reconciler) applyBundle(ctx context.Context, bundleDir string, src source.Source, pkg string) error {
	record, err := r.records.Load(pkg)
	if err != nil {
		return err
	}

	staged := map[string]string{
		harvest.TitleFile:            pkgmeta.FieldName,
		harvest.ShortDescriptionFile: pkgmeta.FieldSummary,
		harvest.FullDescriptionFile:  pkgmeta.FieldDescription,
	}
	for file, field := range staged {
		contents, readErr := os.ReadFile(filepath.Join(bundleDir, file))
		if readErr != nil {
			// Optional files are legitimately absent; anything else is
			// a real I/O problem worth a log line.
			if !errors.Is(readErr, os.ErrNotExist) {
				logger.WarnKV(ctx, "Unable to read staged metadata file",
					"package", pkg, "file", file, "error", readErr)
			}

			continue
		}

		record.Set(field, strings.TrimSpace(string(contents)))
	}

	record.Set(pkgmeta.FieldAuthorName, src.Owner)
	record.Set(pkgmeta.FieldSourceCode, src.RepoURL())
	record.Set(pkgmeta.FieldWebSite, src.RepoURL())
	record.Set(pkgmeta.FieldIssueTracker, src.IssuesURL())

	if err = r.records.Save(pkg, record); err != nil {
		return err
	}

	return r.copyAssets(bundleDir, pkg)
}

// copyAssets publishes the bundle's icon and screenshots into the package's
// per-locale asset directory, overwriting same-named files.
func (r *Reconciler) copyAssets(bundleDir, pkg string) error {
	assetDir := r.records.AssetDir(pkg)

	icon := filepath.Join(bundleDir, harvest.IconFile)
	if _, err := os.Stat(icon); err == nil {
		if err = copyFile(icon, filepath.Join(assetDir, harvest.IconFile)); err != nil {
			return fmt.Errorf("publish icon: %w", err)
		}
	}

	screenshots, err := filepath.Glob(filepath.Join(bundleDir, harvest.ScreenshotsDir, "*.png"))
	if err != nil {
		return err
	}

	for _, screenshot := range screenshots {
		dest := filepath.Join(assetDir, harvest.ScreenshotsDir, filepath.Base(screenshot))
		if err = copyFile(screenshot, dest); err != nil {
			return fmt.Errorf("publish screenshot: %w", err)
		}
	}

	return nil
}

// cleanup deletes every staged bundle unconditionally.
func (r *Reconciler) cleanup(ctx context.Context, bundles []string) {
	for _, bundleDir := range bundles {
		if err := os.RemoveAll(bundleDir); err != nil {
			logger.WarnKV(ctx, "Unable to remove staged bundle", "bundle", bundleDir, "error", err)
		}
	}
}

// copyFile copies src to dest, creating parent directories as needed.
func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dest), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, assetPermissions)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}
