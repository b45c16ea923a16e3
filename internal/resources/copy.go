package resources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

// worldReadable is OR-ed onto copied files so the web server can serve them.
const worldReadable fs.FileMode = 0o444

// Copy mirrors the static resource tree into the data directory and makes
// the copied files world-readable. A missing resource directory is fine:
// deployments without extra static files simply skip this step.
func Copy(ctx context.Context, resourcesDir, dataDir string) error {
	if _, err := os.Stat(resourcesDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat resources directory: %w", err)
	}

	logger.Info(ctx, "Copying resources")

	return filepath.WalkDir(resourcesDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(resourcesDir, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dataDir, relPath)
		if err = copyFile(path, target); err != nil {
			return fmt.Errorf("copy %s: %w", relPath, err)
		}

		logger.InfoKV(ctx, "Copied resource", "file", relPath)

		return nil
	})
}

// copyFile copies src to dest with world-readable permissions,
// creating parent directories as needed.
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

	info, err := in.Stat()
	if err != nil {
		return err
	}

	mode := info.Mode().Perm() | worldReadable

	out, err := os.OpenFile(filepath.Clean(dest), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}
