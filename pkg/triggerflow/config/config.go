// Package config loads engine configuration from YAML or JSON files and
// supports hot-reload via filesystem watching.
package config

import (
	"fmt"
	"time"
)

// Config holds the tunable settings of an engine.
type Config struct {
	// Source labels invocations whose payload carries no tracking token.
	Source string `yaml:"source" json:"source"`

	// MaxConcurrentJobs bounds the number of in-flight jobs per invocation.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" json:"max_concurrent_jobs"`

	// DefaultJobTimeout is the per-job wall-clock budget. Individual jobs
	// may override it.
	DefaultJobTimeout time.Duration `yaml:"default_job_timeout" json:"default_job_timeout"`

	// DetectionTimeout bounds a single detector run. Zero disables the bound.
	DetectionTimeout time.Duration `yaml:"detection_timeout" json:"detection_timeout"`

	// AllowOverride lets a later registration replace an existing event
	// of the same name instead of failing.
	AllowOverride bool `yaml:"allow_override" json:"allow_override"`

	// ReportDSN is the SQLite path for the report sink; empty disables
	// persistence.
	ReportDSN string `yaml:"report_dsn" json:"report_dsn"`

	// Metrics enables the OpenTelemetry metrics recorder.
	Metrics bool `yaml:"metrics" json:"metrics"`

	// Tracing enables OpenTelemetry spans around invocations and jobs.
	Tracing bool `yaml:"tracing" json:"tracing"`
}

// Default returns the configuration used when no file is loaded.
func Default() Config {
	return Config{
		Source:            "triggerflow",
		MaxConcurrentJobs: 8,
		DefaultJobTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("config: source must not be empty")
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("config: max_concurrent_jobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.DefaultJobTimeout <= 0 {
		return fmt.Errorf("config: default_job_timeout must be positive, got %s", c.DefaultJobTimeout)
	}
	if c.DetectionTimeout < 0 {
		return fmt.Errorf("config: detection_timeout must not be negative, got %s", c.DetectionTimeout)
	}
	return nil
}

// withDefaults fills zero values with defaults so partial files stay valid.
func (c Config) withDefaults() Config {
	def := Default()
	if c.Source == "" {
		c.Source = def.Source
	}
	if c.MaxConcurrentJobs == 0 {
		c.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if c.DefaultJobTimeout == 0 {
		c.DefaultJobTimeout = def.DefaultJobTimeout
	}
	return c
}
