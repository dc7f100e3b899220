// Package config loads the gencheck CLI configuration from
// .gencheck.yaml. Command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working
// directory.
const FileName = ".gencheck.yaml"

// Config holds the settings of a gencheck run.
type Config struct {
	// Scenarios are the files and directories run when no paths are
	// given on the command line.
	Scenarios []string `yaml:"scenarios"`

	// Format is the report format: text or json.
	Format string `yaml:"format"`

	// Jobs bounds the number of scenarios run in parallel.
	Jobs int `yaml:"jobs"`

	// Timeout bounds a single scenario.
	Timeout time.Duration `yaml:"timeout"`

	// Options are appended to the options of every scenario.
	Options []string `yaml:"options"`

	// ModulePath replaces the GENCHECK_MODULEPATH search path.
	ModulePath []string `yaml:"module_path"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scenarios: []string{"testdata/scenarios"},
		Format:    "text",
		Jobs:      4,
		Timeout:   2 * time.Minute,
		LogLevel:  "warn",
	}
}

// Load reads the configuration at path over the defaults. An empty
// path looks for FileName in the working directory and falls back to
// the defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q (want text or json)", c.Format)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("invalid jobs %d: must be at least 1", c.Jobs)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the parsed log level. Validate must have passed.
func (c *Config) Level() log.Level {
	lvl, _ := log.ParseLevel(c.LogLevel)
	return lvl
}
