package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

const (
	// MarkerLine delimits the ephemeral credential suffix in the build
	// configuration; everything from this line to end of document is
	// temporary and must never outlive a single build invocation.
	MarkerLine = "# --- TEMPORARY KEYSTORE CONFIG (AUTO-GENERATED) ---"

	// markerToken is the substring used to detect the marker line, kept
	// tolerant of surrounding decoration like the original documents.
	markerToken = "--- TEMPORARY KEYSTORE CONFIG"

	// permanentKeyPrefix marks a keystore configured permanently in the
	// base document; when present no ephemeral block is appended.
	permanentKeyPrefix = "keystore:"
)

// Patcher manages the ephemeral credential suffix of the shared build
// configuration document. It is a two-state machine (clean/patched): Acquire
// unconditionally truncates any leftover suffix from a crashed run, then
// appends the credential block unless a permanent keystore exists; Release
// truncates again if and only if Acquire patched.
type Patcher struct {
	// path is the build configuration document.
	path string
	// keystorePath is written into the ephemeral block.
	keystorePath string
	// creds are the environment-sourced signing secrets.
	creds config.SigningCredentials
	// patched tracks whether Release has a suffix to remove.
	patched bool
	// addedNewline tracks whether Acquire had to terminate the base
	// document before the marker; Release strips it again so the round
	// trip stays byte-identical.
	addedNewline bool
}

// NewPatcher creates a patcher for the build configuration at path.
func NewPatcher(path, keystorePath string, creds config.SigningCredentials) *Patcher {
	return &Patcher{
		path:         filepath.Clean(path),
		keystorePath: keystorePath,
		creds:        creds,
	}
}

// Acquire prepares the document for a build invocation.
func (p *Patcher) Acquire(ctx context.Context) error {
	recovered, err := p.truncate()
	if err != nil {
		return fmt.Errorf("truncate leftover credential block: %w", err)
	}

	if recovered {
		logger.Warn(ctx, "Removed leftover temporary keystore block from a previous run")
	}

	contents, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read build configuration: %w", err)
	}

	if hasPermanentKeystore(string(contents)) {
		logger.Debug(ctx, "Permanent keystore configured, leaving document untouched")
		return nil
	}

	if err = p.appendCredentialBlock(string(contents)); err != nil {
		return fmt.Errorf("append credential block: %w", err)
	}

	p.patched = true

	return nil
}

// Release restores the document after a build invocation, regardless of
// whether the wrapped operation succeeded.
func (p *Patcher) Release(ctx context.Context) error {
	if !p.patched {
		return nil
	}

	p.patched = false

	if _, err := p.truncate(); err != nil {
		return fmt.Errorf("remove credential block: %w", err)
	}

	if p.addedNewline {
		p.addedNewline = false

		if err := p.stripTrailingNewline(); err != nil {
			return fmt.Errorf("restore document terminator: %w", err)
		}
	}

	logger.Debug(ctx, "Removed temporary keystore block")

	return nil
}

// truncate removes everything from the marker line to end of document.
// It is idempotent and reports whether a suffix was actually removed.
func (p *Patcher) truncate() (bool, error) {
	contents, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	prefix, found := cutAtMarker(string(contents))
	if !found {
		return false, nil
	}

	if err = os.WriteFile(p.path, []byte(prefix), config.DefaultFilePermissions); err != nil {
		return false, err
	}

	return true, nil
}

// appendCredentialBlock writes the marker line and the three credential
// fields to the end of the document.
func (p *Patcher) appendCredentialBlock(contents string) error {
	var builder strings.Builder

	builder.WriteString(contents)

	if contents != "" && !strings.HasSuffix(contents, "\n") {
		builder.WriteString("\n")

		p.addedNewline = true
	}

	builder.WriteString(MarkerLine + "\n")
	builder.WriteString("keystore: " + p.keystorePath + "\n")
	builder.WriteString("repo_keyalias: " + p.creds.KeyAlias + "\n")
	builder.WriteString("keystorepass: " + p.creds.KeystorePass + "\n")
	builder.WriteString("keypass: " + p.creds.KeyPass + "\n")

	return os.WriteFile(p.path, []byte(builder.String()), config.DefaultFilePermissions)
}

// stripTrailingNewline removes the single terminating newline Acquire
// appended to an unterminated base document.
func (p *Patcher) stripTrailingNewline() error {
	contents, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}

	trimmed, found := strings.CutSuffix(string(contents), "\n")
	if !found {
		return nil
	}

	return os.WriteFile(p.path, []byte(trimmed), config.DefaultFilePermissions)
}

// cutAtMarker returns the document content strictly before the marker line.
func cutAtMarker(contents string) (string, bool) {
	idx := strings.Index(contents, markerToken)
	if idx < 0 {
		return contents, false
	}

	lineStart := strings.LastIndex(contents[:idx], "\n") + 1

	return contents[:lineStart], true
}

// hasPermanentKeystore reports whether the base document already carries
// a keystore field of its own.
func hasPermanentKeystore(contents string) bool {
	for _, line := range strings.Split(contents, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), permanentKeyPrefix) {
			return true
		}
	}

	return false
}
