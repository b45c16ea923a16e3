package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

// Mapping maps upstream source slugs ("owner/project") to resolved
// package identifiers. Once a source is mapped, the existing value is
// authoritative and is never overwritten.
type Mapping map[string]string

// Resolve returns the package identifier recorded for the source.
func (m Mapping) Resolve(src source.Source) (string, bool) {
	pkg, ok := m[src.Slug()]
	return pkg, ok
}

// Record stores a package identifier for the source unless one is
// already present. It reports whether the mapping was extended.
func (m Mapping) Record(src source.Source, pkg string) bool {
	if _, ok := m[src.Slug()]; ok {
		return false
	}

	m[src.Slug()] = pkg

	return true
}

// MatchKey finds the mapped source whose filesystem key equals the
// provided key. Keys are compared whole: splitting a key back into
// owner and project is ambiguous.
func (m Mapping) MatchKey(key string) (source.Source, string, bool) {
	for slug, pkg := range m {
		src, err := source.Parse(slug)
		if err != nil {
			continue
		}

		if src.Key() == key {
			return src, pkg, true
		}
	}

	return source.Source{}, "", false
}

// Store defines persistence operations for the identity mapping.
type Store interface {
	Load(ctx context.Context) Mapping
	Save(ctx context.Context, mapping Mapping) error
}

// FileStore persists the identity mapping to a JSON file on disk.
// Saves go through a temporary file followed by a rename, so a reader
// never observes a partially written document.
type FileStore struct {
	// path is the filesystem location of the JSON mapping file.
	path string
}

// NewFileStore creates a store that reads/writes JSON at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Load reads the mapping from disk. A missing or corrupt document yields
// an empty mapping: a lost mapping is rebuilt from artifact inspection on
// later cycles, so it is never worth failing a cycle over.
func (s *FileStore) Load(ctx context.Context) Mapping {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnKV(ctx, "Unable to read identity mapping, starting empty", "path", s.path, "error", err)
		}

		return Mapping{}
	}

	var mapping Mapping
	if err = json.Unmarshal(contents, &mapping); err != nil {
		logger.WarnKV(ctx, "Identity mapping is corrupt, starting empty", "path", s.path, "error", err)
		return Mapping{}
	}

	if mapping == nil {
		mapping = Mapping{}
	}

	return mapping
}

// Save writes the mapping to disk, replacing the previous document.
func (s *FileStore) Save(_ context.Context, mapping Mapping) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode identity mapping: %w", err)
	}

	temporary := s.path + ".tmp"
	if err = os.WriteFile(temporary, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write identity mapping: %w", err)
	}

	if err = os.Rename(temporary, s.path); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("replace identity mapping: %w", err)
	}

	return nil
}
