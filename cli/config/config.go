// Package config handles courier.yaml loading for courier publish.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/types"
)

// Config represents a courier.yaml configuration file.
// All values are optional and act as defaults for courier publish flags.
// CLI flags always override config values.
type Config struct {
	Step       StepConfig        `yaml:"step"`
	Connection ConnectionConfig  `yaml:"connection"`
	Properties map[string]string `yaml:"properties"`
	Project    ProjectConfig     `yaml:"project"`
	Adapter    AdapterConfig     `yaml:"adapter"`
	Log        LogConfig         `yaml:"log"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// StepConfig holds the publish step settings.
type StepConfig struct {
	Name        string `yaml:"name"`
	MessageKind string `yaml:"message_kind"`
	Message     string `yaml:"message"`
	// MessageFile is read as the message text. Exclusive with Message.
	MessageFile string `yaml:"message_file"`
	TimeoutMs   *int   `yaml:"timeout_ms,omitempty"`
}

// ConnectionConfig holds the WebSocket endpoint settings.
type ConnectionConfig struct {
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	HandshakeTimeout Duration          `yaml:"handshake_timeout,omitempty"`
}

// ProjectConfig holds BinaryFile resolution settings.
type ProjectConfig struct {
	// Dir is the directory relative references resolve against.
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

// S3Config holds object store settings for s3:// references.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	MaxBytes  int64  `yaml:"max_bytes"`
}

// AdapterConfig holds step completion notification settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile is a path written in Prometheus text format after each run.
	Textfile string `yaml:"textfile"`
}

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks values that decode cleanly but cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if k := c.Step.MessageKind; k != "" {
		if _, ok := message.ParseKind(k); !ok {
			errs = append(errs, fmt.Errorf("step.message_kind: unknown kind %q", k))
		}
	}
	if c.Step.Message != "" && c.Step.MessageFile != "" {
		errs = append(errs, errors.New("step.message and step.message_file are mutually exclusive"))
	}
	if c.Step.TimeoutMs != nil && *c.Step.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("step.timeout_ms must be >= 0, got %d", *c.Step.TimeoutMs))
	}
	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	return errors.Join(errs...)
}

// Settings returns the step settings the file declares.
// Unset values keep the step defaults.
func (s StepConfig) Settings() types.StepSettings {
	settings := types.StepSettings{
		MessageKind: s.MessageKind,
		Message:     s.Message,
	}
	if settings.MessageKind == "" {
		settings.MessageKind = string(message.DefaultKind)
	}
	if s.TimeoutMs != nil {
		settings.TimeoutMillis = *s.TimeoutMs
	}
	return settings
}
