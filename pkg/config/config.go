package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"github.com/srg/tagctl/internal/tracer"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel     string            `yaml:"log_level"` // empty keeps logging silent
	OutputFormat string            `yaml:"output_format" default:"table"`
	Scan         ScanConfig        `yaml:"scan"`
	Session      SessionConfig     `yaml:"session"`
	Tracing      TracingConfig     `yaml:"tracing"`
	Tags         map[string]string `yaml:"tags"` // address -> label
}

// ScanConfig configures a scan window and its admission filter
type ScanConfig struct {
	Duration    time.Duration `yaml:"duration" default:"5s"`
	Interval    time.Duration `yaml:"interval" default:"30ms"`
	Window      time.Duration `yaml:"window" default:"30ms"`
	Active      bool          `yaml:"active" default:"true"`
	NamePrefix  string        `yaml:"name_prefix" default:"iTAG"`
	AddressType string        `yaml:"address_type" default:"public"`
}

// SessionConfig bounds every blocking session step
type SessionConfig struct {
	ConnectTimeout     time.Duration `yaml:"connect_timeout" default:"10s"`
	DiscoveryTimeout   time.Duration `yaml:"discovery_timeout" default:"5s"`
	OperationTimeout   time.Duration `yaml:"operation_timeout" default:"5s"`
	NotificationBuffer int           `yaml:"notification_buffer" default:"64"`
}

// TracingConfig selects the OpenTelemetry exporter
type TracingConfig = tracer.Config

// DefaultTags are the tags the tool knows by label out of the box
var DefaultTags = map[string]string{
	"ff:ff:33:31:8a:76": "Blue",
	"ff:ff:70:03:ef:92": "Pink",
	"ff:ff:20:03:ce:bf": "Green",
	"ff:ff:33:01:9a:e4": "Black",
	"ff:ff:99:90:3c:34": "White",
}

var validFormats = []string{"table", "json"}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	cfg.Tags = make(map[string]string, len(DefaultTags))
	for addr, label := range DefaultTags {
		cfg.Tags[addr] = label
	}
	return cfg
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed through defaults
func (c *Config) Validate() error {
	var errs []error

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	if !isValidFormat(c.OutputFormat) {
		errs = append(errs, fmt.Errorf("invalid output format %q: must be one of %v", c.OutputFormat, validFormats))
	}
	if _, err := device.ParseAddressType(c.Scan.AddressType); err != nil {
		errs = append(errs, err)
	}
	if c.Scan.Window > c.Scan.Interval {
		errs = append(errs, fmt.Errorf("scan window %v exceeds interval %v", c.Scan.Window, c.Scan.Interval))
	}
	if c.Session.NotificationBuffer <= 0 {
		errs = append(errs, fmt.Errorf("notification buffer must be positive, got %d", c.Session.NotificationBuffer))
	}
	if _, err := c.KnownTags(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ScanParams converts the scan section into radio parameters
func (c *Config) ScanParams() device.ScanParams {
	return device.ScanParams{
		Duration: c.Scan.Duration,
		Interval: c.Scan.Interval,
		Window:   c.Scan.Window,
		Active:   c.Scan.Active,
	}
}

// KnownTags parses the tag table keyed by address
func (c *Config) KnownTags() (map[device.Address]string, error) {
	tags := make(map[device.Address]string, len(c.Tags))
	for s, label := range c.Tags {
		addr, err := device.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", label, err)
		}
		tags[addr] = label
	}
	return tags, nil
}

// NewLogger creates a logger at the configured level writing to out.
// An unset level yields a logger that stays silent short of a panic.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level := logrus.PanicLevel
	if c.LogLevel != "" {
		parsed, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		level = parsed
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
