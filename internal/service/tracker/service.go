package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/NtWriteCode/fdroid-github-tracker/internal/config"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/domain/source"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/fetch"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/harvest"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/index"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/inspect"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/logger"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/reconcile"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/identity"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/repository/pkgmeta"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/resources"
	"github.com/NtWriteCode/fdroid-github-tracker/internal/upstream"
)

// identityFilename stores the source-to-package mapping inside the data dir.
const identityFilename = "repo_package_map.json"

// Service drives the full update pipeline on a fixed schedule.
type Service struct {
	cfg        *config.Settings
	sources    []source.Source
	fetcher    *fetch.Fetcher
	harvester  *harvest.Harvester
	reconciler *reconcile.Reconciler
	builder    *index.Builder
}

// deps are the replaceable collaborators, overridable in tests.
type deps struct {
	runner    index.Runner
	inspector inspect.Inspector
	releases  *upstream.ReleaseClient
	content   *upstream.ContentClient
}

// Option overrides a service collaborator.
type Option func(*deps)

// WithRunner replaces the external tool runner.
func WithRunner(runner index.Runner) Option {
	return func(d *deps) {
		d.runner = runner
	}
}

// WithInspector replaces the artifact inspector.
func WithInspector(inspector inspect.Inspector) Option {
	return func(d *deps) {
		d.inspector = inspector
	}
}

// WithReleaseClient replaces the release host client.
func WithReleaseClient(client *upstream.ReleaseClient) Option {
	return func(d *deps) {
		d.releases = client
	}
}

// WithContentClient replaces the raw-content host client.
func WithContentClient(client *upstream.ContentClient) Option {
	return func(d *deps) {
		d.content = client
	}
}

// New wires the pipeline components for the provided settings and sources.
func New(cfg *config.Settings, sources []source.Source, opts ...Option) *Service {
	d := &deps{
		runner:    index.ExecRunner{},
		inspector: inspect.NewAPKInspector(),
		releases:  upstream.NewReleaseClient(),
		content:   upstream.NewContentClient(),
	}

	for _, opt := range opts {
		opt(d)
	}

	identities := identity.NewFileStore(filepath.Join(cfg.DataDir, identityFilename))
	records := pkgmeta.NewStore(cfg.MetadataDir)
	patcher := index.NewPatcher(cfg.BuildConfigPath(), cfg.KeystorePath, cfg.Signing)

	return &Service{
		cfg:        cfg,
		sources:    sources,
		fetcher:    fetch.NewFetcher(d.releases, identities, d.inspector, cfg.RepoDir),
		harvester:  harvest.NewHarvester(d.content, cfg.DataDir),
		reconciler: reconcile.NewReconciler(identities, records, cfg.DataDir),
		builder:    index.NewBuilder(cfg, patcher, d.runner),
	}
}

// Run loops update cycles until the context is canceled. Every cycle runs
// under a failure boundary: recoverable errors never stop the service.
func (s *Service) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Starting tracker service",
		"sources", len(s.sources), "interval", s.cfg.PollInterval.String())

	for {
		s.RunCycle(ctx)

		logger.Infof(ctx, "Sleeping for %s", s.cfg.PollInterval)

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// RunCycle executes one update cycle, absorbing any failure.
func (s *Service) RunCycle(ctx context.Context) {
	if err := s.cycle(ctx); err != nil {
		logger.ErrorKV(ctx, "Update cycle failed", "error", err)
	}
}

// cycle is one pass of the pipeline: fetch, harvest, skeleton build,
// reconcile, final build. Panics are converted into errors so a bad cycle
// cannot take the scheduler down.
func (s *Service) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v\n%s", r, debug.Stack())
		}
	}()

	logger.Info(ctx, "Starting update check")

	result := s.fetcher.Fetch(ctx, s.sources)
	if !result.Downloaded {
		logger.Info(ctx, "No new artifacts found")
		return nil
	}

	logger.Info(ctx, "New artifacts found, starting two-pass update")

	s.harvester.Harvest(ctx, result.Sources)

	if err = resources.Copy(ctx, s.cfg.ResourcesDir, s.cfg.DataDir); err != nil {
		return fmt.Errorf("copy resources: %w", err)
	}

	// Pass 1 materializes metadata skeletons for reconciliation to enrich.
	if err = s.builder.Build(ctx, index.PassSkeleton); err != nil {
		return err
	}

	s.reconciler.Apply(ctx)

	// Pass 2 rebuilds from the patched metadata and signs the index.
	if err = s.builder.Build(ctx, index.PassFinal); err != nil {
		return err
	}

	logger.Info(ctx, "Update check complete")

	return nil
}
