package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds directory layout and collaborator paths for the tracker.
// All fields have deployment defaults, so a missing settings file is fine.
type Settings struct {
	// DataDir is the working directory holding the repository, metadata and staging areas.
	DataDir string `yaml:"data_dir"`
	// RepoDir is the flat directory of downloaded release artifacts and the built index.
	RepoDir string `yaml:"repo_dir"`
	// MetadataDir holds per-package metadata records and published assets.
	MetadataDir string `yaml:"metadata_dir"`
	// SourcesFile is the JSON document listing upstream "owner/project" slugs.
	SourcesFile string `yaml:"sources_file"`
	// ResourcesDir is an optional tree of static files copied into DataDir each cycle.
	ResourcesDir string `yaml:"resources_dir"`
	// BuildConfigSeed is the pristine build configuration copied into DataDir when absent.
	BuildConfigSeed string `yaml:"build_config_seed"`
	// KeystorePath is the signing keystore referenced by the ephemeral credential block.
	KeystorePath string `yaml:"keystore_path"`
	// PollInterval is the pause between update cycles. Sourced from the
	// POLL_INTERVAL environment variable (seconds), not from YAML.
	PollInterval time.Duration `yaml:"-"`
	// Signing holds the ephemeral keystore credentials sourced from the environment.
	Signing SigningCredentials `yaml:"-"`
}

// SigningCredentials are the keystore secrets injected into the build
// configuration only for the duration of a single build invocation.
type SigningCredentials struct {
	// KeyAlias is the repository key alias within the keystore.
	KeyAlias string
	// KeystorePass is the keystore password.
	KeystorePass string
	// KeyPass is the key password.
	KeyPass string
}

const (
	// DefaultConfigFilename is the default filename for tracker settings.
	DefaultConfigFilename = "fdroid-tracker-settings.yaml"

	// DefaultDataDir is the default working directory.
	DefaultDataDir = "/data"

	// DefaultSourcesFile is the default path of the upstream source list.
	DefaultSourcesFile = "/app/config/repos.json"

	// DefaultResourcesDir is the default static resources directory.
	DefaultResourcesDir = "/app/config/resources"

	// DefaultBuildConfigSeed is the default pristine build configuration path.
	DefaultBuildConfigSeed = "/app/config/config.yml"

	// DefaultKeystorePath is the default signing keystore path.
	DefaultKeystorePath = "/app/config/keystore.jks"

	// DefaultPollInterval is the pause between update cycles when
	// POLL_INTERVAL is absent or invalid.
	DefaultPollInterval = 900 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// BuildConfigFilename is the build configuration filename inside DataDir.
	BuildConfigFilename = "config.yml"
)

// Environment variable names consumed by Load.
const (
	EnvPollInterval = "POLL_INTERVAL"
	EnvKeyAlias     = "FDROID_KEY_ALIAS"
	EnvKeystorePass = "FDROID_KEYSTORE_PASS"
	EnvKeyPass      = "FDROID_KEY_PASS"
)

// errSettingsNotSet is returned when a nil settings value is provided.
var errSettingsNotSet = errors.New("settings are not set")

// Load reads settings from the provided path, fills defaults and applies
// environment overrides. A missing settings file yields pure defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Settings

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	cfg.PollInterval = pollIntervalFromEnv()
	cfg.Signing = SigningCredentials{
		KeyAlias:     os.Getenv(EnvKeyAlias),
		KeystorePass: os.Getenv(EnvKeystorePass),
		KeyPass:      os.Getenv(EnvKeyPass),
	}

	return &cfg, nil
}

// Validate fills defaults for unset fields.
func Validate(settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if settings.DataDir == "" {
		settings.DataDir = DefaultDataDir
	}

	if settings.RepoDir == "" {
		settings.RepoDir = filepath.Join(settings.DataDir, "repo")
	}

	if settings.MetadataDir == "" {
		settings.MetadataDir = filepath.Join(settings.DataDir, "metadata")
	}

	if settings.SourcesFile == "" {
		settings.SourcesFile = DefaultSourcesFile
	}

	if settings.ResourcesDir == "" {
		settings.ResourcesDir = DefaultResourcesDir
	}

	if settings.BuildConfigSeed == "" {
		settings.BuildConfigSeed = DefaultBuildConfigSeed
	}

	if settings.KeystorePath == "" {
		settings.KeystorePath = DefaultKeystorePath
	}

	return nil
}

// BuildConfigPath returns the working build configuration path inside DataDir.
func (s *Settings) BuildConfigPath() string {
	return filepath.Join(s.DataDir, BuildConfigFilename)
}

// pollIntervalFromEnv reads POLL_INTERVAL in whole seconds,
// clamping absent, malformed or non-positive values to the default.
func pollIntervalFromEnv() time.Duration {
	raw, ok := os.LookupEnv(EnvPollInterval)
	if !ok {
		return DefaultPollInterval
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return DefaultPollInterval
	}

	return time.Duration(seconds) * time.Second
}
