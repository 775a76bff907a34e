package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk schema. Durations are strings ("30s", "500ms")
// so files stay readable; bare numbers are interpreted as seconds.
type fileConfig struct {
	Source            string `yaml:"source" json:"source"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	DefaultJobTimeout any    `yaml:"default_job_timeout" json:"default_job_timeout"`
	DetectionTimeout  any    `yaml:"detection_timeout" json:"detection_timeout"`
	AllowOverride     bool   `yaml:"allow_override" json:"allow_override"`
	ReportDSN         string `yaml:"report_dsn" json:"report_dsn"`
	Metrics           bool   `yaml:"metrics" json:"metrics"`
	Tracing           bool   `yaml:"tracing" json:"tracing"`
}

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fc.toConfig()
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return fc.toConfig()
}

func (fc fileConfig) toConfig() (Config, error) {
	defaultTimeout, err := asDuration(fc.DefaultJobTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("default_job_timeout: %w", err)
	}
	detectionTimeout, err := asDuration(fc.DetectionTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("detection_timeout: %w", err)
	}

	c := Config{
		Source:            fc.Source,
		MaxConcurrentJobs: fc.MaxConcurrentJobs,
		DefaultJobTimeout: defaultTimeout,
		DetectionTimeout:  detectionTimeout,
		AllowOverride:     fc.AllowOverride,
		ReportDSN:         fc.ReportDSN,
		Metrics:           fc.Metrics,
		Tracing:           fc.Tracing,
	}.withDefaults()

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// asDuration converts a file value to a duration.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int / int64: interpreted as seconds
//   - float64: interpreted as seconds
//   - nil: zero
func asDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
