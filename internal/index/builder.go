package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

// toolName is the external build/sign tool driven by the builder.
const toolName = "fdroid"

// Pass selects the build invocation flavor.
type Pass int

const (
	// PassSkeleton is the unsigned pass that materializes and normalizes
	// per-package metadata records before reconciliation.
	PassSkeleton Pass = iota
	// PassFinal is the signed pass producing the publishable index.
	PassFinal
)

// String implements fmt.Stringer for log output.
func (p Pass) String() string {
	if p == PassFinal {
		return "final"
	}

	return "skeleton"
}

// errBuildConfigMissing is returned when neither the working build
// configuration nor its seed exists.
var errBuildConfigMissing = errors.New("build configuration not found")

// Runner executes an external tool synchronously. The production runner
// blocks without a timeout: pipeline operations run strictly one at a time.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs tools via os/exec, surfacing combined output on failure.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, output)
	}

	return nil
}

// Builder drives the external build/sign tool over the repository,
// coordinating ephemeral credentials through the patcher.
type Builder struct {
	// dataDir is the working directory the tool runs in.
	dataDir string
	// configPath is the working build configuration document.
	configPath string
	// seedPath is the pristine configuration copied in when absent.
	seedPath string
	// patcher manages the ephemeral credential suffix.
	patcher *Patcher
	// runner executes the external tool.
	runner Runner
}

// NewBuilder creates an index builder.
func NewBuilder(settings *config.Settings, patcher *Patcher, runner Runner) *Builder {
	return &Builder{
		dataDir:    settings.DataDir,
		configPath: settings.BuildConfigPath(),
		seedPath:   settings.BuildConfigSeed,
		patcher:    patcher,
		runner:     runner,
	}
}

// Build runs one pass of the external tool. The update step always runs;
// the signing step only for the final pass. Whatever the outcome, the
// credential suffix does not survive the invocation.
func (b *Builder) Build(ctx context.Context, pass Pass) error {
	logger.InfoKV(ctx, "Running index build", "pass", pass.String())

	if err := b.ensureConfig(); err != nil {
		return err
	}

	// Credentials end up in this document; keep it owner-only.
	if err := os.Chmod(b.configPath, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("restrict build configuration permissions: %w", err)
	}

	if err := b.patcher.Acquire(ctx); err != nil {
		return err
	}

	defer func() {
		if err := b.patcher.Release(ctx); err != nil {
			logger.ErrorKV(ctx, "Unable to restore build configuration", "error", err)
		}
	}()

	if err := b.runner.Run(ctx, b.dataDir, toolName, "update", "-q", "--create-metadata", "--pretty"); err != nil {
		return fmt.Errorf("%s pass: update: %w", pass, err)
	}

	if pass == PassFinal {
		logger.Info(ctx, "Signing index")

		if err := b.runner.Run(ctx, b.dataDir, toolName, "signindex", "-q"); err != nil {
			return fmt.Errorf("%s pass: signindex: %w", pass, err)
		}
	}

	logger.InfoKV(ctx, "Index build finished", "pass", pass.String())

	return nil
}

// ensureConfig seeds the working build configuration from the pristine copy
// when absent. A missing document is fatal to the pass: the external tool
// cannot run without it.
func (b *Builder) ensureConfig() error {
	if _, err := os.Stat(b.configPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat build configuration: %w", err)
	}

	seed, err := os.Open(filepath.Clean(b.seedPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", b.configPath, errBuildConfigMissing)
		}

		return fmt.Errorf("open seed configuration: %w", err)
	}

	defer func() {
		_ = seed.Close()
	}()

	out, err := os.OpenFile(
		filepath.Clean(b.configPath),
		os.O_WRONLY|os.O_CREATE|os.O_EXCL,
		config.DefaultFilePermissions,
	)
	if err != nil {
		return fmt.Errorf("create build configuration: %w", err)
	}

	if _, err = io.Copy(out, seed); err != nil {
		_ = out.Close()

		return fmt.Errorf("seed build configuration: %w", err)
	}

	return out.Close()
}
