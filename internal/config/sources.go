package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

// LoadSources reads the upstream source list: a JSON array of
// "owner/project" slugs. Malformed entries are logged and skipped,
// a missing or unreadable document is an error.
func LoadSources(ctx context.Context, path string) ([]source.Source, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}

	var slugs []string
	if err = json.Unmarshal(contents, &slugs); err != nil {
		return nil, fmt.Errorf("unmarshal source list: %w", err)
	}

	sources := make([]source.Source, 0, len(slugs))

	for _, slug := range slugs {
		src, parseErr := source.Parse(slug)
		if parseErr != nil {
			logger.WarnKV(ctx, "Skipping malformed source entry", "entry", slug, "error", parseErr)
			continue
		}

		sources = append(sources, src)
	}

	return sources, nil
}
