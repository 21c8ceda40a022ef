// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Trace discovery
	Trace TraceConfig `yaml:"trace"`

	// Interpretation of trace records
	Interpret InterpretConfig `yaml:"interpret"`

	// Subscription groups to compare once all input is consumed
	Comparisons []Comparison `yaml:"comparisons"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TraceConfig contains input file settings
type TraceConfig struct {
	CurrentName   string `yaml:"current_name" env:"TRACECHECK_CURRENT_NAME"`
	ArchiveSuffix string `yaml:"archive_suffix" env:"TRACECHECK_ARCHIVE_SUFFIX"`
	TempDirectory string `yaml:"temp_directory" env:"TRACECHECK_TEMP_DIR"`
}

// InterpretConfig contains trace format settings
type InterpretConfig struct {
	ChunkWidth       int    `yaml:"chunk_width" env:"TRACECHECK_CHUNK_WIDTH"`
	TakeoverCode     int    `yaml:"takeover_code" env:"TRACECHECK_TAKEOVER_CODE"`
	SubscriberMarker string `yaml:"subscriber_marker" env:"TRACECHECK_SUBSCRIBER_MARKER"`
}

// LoggingConfig contains output settings
type LoggingConfig struct {
	Level   string `yaml:"level" env:"TRACECHECK_LOG_LEVEL"`
	NoColor bool   `yaml:"no_color" env:"TRACECHECK_NO_COLOR"`
}

// Comparison names two subscription groups whose device views are cross-checked.
type Comparison struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Trace: TraceConfig{
			CurrentName:   "imatrace.log",
			ArchiveSuffix: ".gz",
			TempDirectory: os.TempDir(),
		},
		Interpret: InterpretConfig{
			ChunkWidth:       32,
			TakeoverCode:     288,
			SubscriberMarker: "A",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads the defaults, overlays configPath when given, then applies
// environment variable overrides. A missing configPath is an error.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Trace.TempDirectory != "" && !filepath.IsAbs(c.Trace.TempDirectory) {
		c.Trace.TempDirectory = filepath.Join(configDir, c.Trace.TempDirectory)
	}
}

// AddComparisons parses "left,right" pairs and appends them.
func (c *AppConfig) AddComparisons(pairs []string) error {
	for _, pair := range pairs {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return fmt.Errorf("comparison %q: want two comma-separated groups", pair)
		}
		c.Comparisons = append(c.Comparisons, Comparison{
			Left:  strings.TrimSpace(parts[0]),
			Right: strings.TrimSpace(parts[1]),
		})
	}
	return c.Validate()
}

// Validate checks the settings the interpreter depends on
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Trace.CurrentName == "" {
		errs = append(errs, errors.New("trace.current_name must not be empty"))
	}
	if c.Interpret.ChunkWidth <= 0 {
		errs = append(errs, fmt.Errorf("interpret.chunk_width must be positive, got %d", c.Interpret.ChunkWidth))
	}
	if c.Interpret.SubscriberMarker == "" || strings.Contains(c.Interpret.SubscriberMarker, ":") {
		errs = append(errs, fmt.Errorf("interpret.subscriber_marker %q is invalid", c.Interpret.SubscriberMarker))
	}
	for i, cmp := range c.Comparisons {
		if cmp.Left == "" || cmp.Right == "" {
			errs = append(errs, fmt.Errorf("comparisons[%d]: both groups are required", i))
		} else if cmp.Left == cmp.Right {
			errs = append(errs, fmt.Errorf("comparisons[%d]: cannot compare %q with itself", i, cmp.Left))
		}
	}
	return errors.Join(errs...)
}
