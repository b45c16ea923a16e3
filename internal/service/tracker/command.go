package tracker

import (
	"context"
	"fmt"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
)

// Options are inputs accepted by the tracker entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// Run loads configuration and the source list, wires the service and
// loops until the context is canceled. It is the public entry point
// for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fdroid-tracker")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The source list is read once per process start, not hot-reloaded.
	sources, err := config.LoadSources(ctx, cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("load source list: %w", err)
	}

	return New(cfg, sources).Run(ctx)
}
