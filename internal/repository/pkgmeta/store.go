package pkgmeta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// recordPermissions keeps records readable by the external build tool.
const recordPermissions = 0o644

// Well-known record fields written by the reconciler. The skeleton pass of
// the build tool populates many more; those survive round-trips untouched.
const (
	FieldName         = "Name"
	FieldSummary      = "Summary"
	FieldDescription  = "Description"
	FieldAuthorName   = "AuthorName"
	FieldSourceCode   = "SourceCode"
	FieldWebSite      = "WebSite"
	FieldIssueTracker = "IssueTracker"
)

// defaultLocale is the locale directory for published per-package assets.
const defaultLocale = "en-US"

// Record is the descriptive metadata document for one package. It wraps the
// raw field map so fields this service does not know about are preserved.
type Record struct {
	fields map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		fields: make(map[string]any),
	}
}

// Set stores a string field value.
func (r *Record) Set(field, value string) {
	r.fields[field] = value
}

// Get returns a field as a string, reporting whether it is present
// and string-valued.
func (r *Record) Get(field string) (string, bool) {
	value, ok := r.fields[field].(string)
	return value, ok
}

// Len returns the number of populated fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Store persists per-package metadata records as YAML documents inside
// the metadata directory, one <package>.yml per package identifier.
type Store struct {
	// dir is the metadata directory shared with the external build tool.
	dir string
}

// NewStore creates a store rooted at the provided metadata directory.
func NewStore(dir string) *Store {
	return &Store{
		dir: filepath.Clean(dir),
	}
}

// Path returns the record document path for a package identifier.
func (s *Store) Path(pkg string) string {
	return filepath.Join(s.dir, pkg+".yml")
}

// AssetDir returns the published per-locale asset directory for a package.
func (s *Store) AssetDir(pkg string) string {
	return filepath.Join(s.dir, pkg, defaultLocale)
}

// Load reads a package record. An absent document yields an empty record;
// the skeleton build pass normally materializes it first.
func (s *Store) Load(pkg string) (*Record, error) {
	contents, err := os.ReadFile(s.Path(pkg))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRecord(), nil
		}

		return nil, fmt.Errorf("read package record: %w", err)
	}

	var fields map[string]any
	if err = yaml.Unmarshal(contents, &fields); err != nil {
		return nil, fmt.Errorf("decode package record: %w", err)
	}

	if fields == nil {
		fields = make(map[string]any)
	}

	return &Record{fields: fields}, nil
}

// Save writes a package record, creating the metadata directory as needed.
func (s *Store) Save(pkg string, record *Record) error {
	data, err := yaml.Marshal(record.fields)
	if err != nil {
		return fmt.Errorf("encode package record: %w", err)
	}

	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	if err = os.WriteFile(s.Path(pkg), data, recordPermissions); err != nil {
		return fmt.Errorf("write package record: %w", err)
	}

	return nil
}
