// Package config loads stubcat.yaml and the muted-problems side-file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/stubcat/internal/version"
)

const (
	// DefaultPath is the configuration file looked up in the working
	// directory.
	DefaultPath = "stubcat.yaml"

	// EnvCurrentVersion overrides current_version.
	EnvCurrentVersion = "STUBCAT_CURRENT_VERSION"

	DefaultDatabase    = ".stubcat/index.db"
	DefaultLinkTimeout = 10 * time.Second
)

// Config is the on-disk configuration.
type Config struct {
	Versions       []string `yaml:"versions"`
	CurrentVersion string   `yaml:"current_version"`

	// CorePaths are the path segments marking the core surface. Empty
	// means every file is core.
	CorePaths []string `yaml:"core_paths"`

	// MutedProblems is the path of the muted-problems side-file.
	MutedProblems string `yaml:"muted_problems"`

	// Reference is the path of the reflection snapshot to compare against.
	Reference string `yaml:"reference"`

	CheckLinks  bool          `yaml:"check_links"`
	LinkTimeout time.Duration `yaml:"link_timeout"`
	Workers     int           `yaml:"workers"`
	Database    string        `yaml:"database"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Versions) == 0 {
		c.Versions = append([]string(nil), version.KnownReleases...)
	}
	if c.CurrentVersion == "" {
		c.CurrentVersion = c.Versions[len(c.Versions)-1]
	}
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = DefaultLinkTimeout
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
}

// Load reads path, applies STUBCAT_CURRENT_VERSION and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnv(os.Getenv)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML and fills in defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvCurrentVersion); v != "" {
		c.CurrentVersion = v
	}
}

// Validate checks that the versions form a strictly increasing sequence
// containing the current version.
func (c *Config) Validate() error {
	seq, err := c.Sequence()
	if err != nil {
		return err
	}
	cur, err := version.Parse(c.CurrentVersion)
	if err != nil {
		return fmt.Errorf("current_version: %w", err)
	}
	if !seq.Contains(cur) {
		return fmt.Errorf("current_version %s is not one of versions", cur)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Sequence returns the configured release sequence.
func (c *Config) Sequence() (*version.Sequence, error) {
	seq, err := version.NewSequence(c.Versions...)
	if err != nil {
		return nil, fmt.Errorf("versions: %w", err)
	}
	return seq, nil
}

// Current returns the configured current version.
func (c *Config) Current() version.Version {
	return version.Version(c.CurrentVersion)
}
