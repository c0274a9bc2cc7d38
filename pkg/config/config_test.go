package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tagctl/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.LogLevel, "logging MUST be silent unless configured")
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, 5*time.Second, cfg.Scan.Duration)
	assert.Equal(t, 30*time.Millisecond, cfg.Scan.Interval)
	assert.Equal(t, 30*time.Millisecond, cfg.Scan.Window)
	assert.True(t, cfg.Scan.Active)
	assert.Equal(t, "iTAG", cfg.Scan.NamePrefix)
	assert.Equal(t, "public", cfg.Scan.AddressType)
	assert.Equal(t, 10*time.Second, cfg.Session.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.DiscoveryTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.OperationTimeout)
	assert.Equal(t, 64, cfg.Session.NotificationBuffer)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Len(t, cfg.Tags, len(DefaultTags))
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfig_TagsAreCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tags["00:00:00:00:00:01"] = "Mutated"

	_, exists := DefaultTags["00:00:00:00:00:01"]
	assert.False(t, exists, "mutating config tags MUST NOT alter DefaultTags")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: "debug", expected: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: "info", expected: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: "warn", expected: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: "error", expected: logrus.ErrorLevel},
		{name: "falls back to info on garbage", logLevel: "loud", expected: logrus.InfoLevel},
		{name: "unset level is silent", logLevel: "", expected: logrus.PanicLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			var out bytes.Buffer
			logger := cfg.NewLogger(&out)

			assert.NotNil(t, logger)
			assert.Same(t, &out, logger.Out)
			assert.Equal(t, tt.expected, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overlays yaml on defaults", func(t *testing.T) {
		path := writeConfig(t, `
log_level: debug
scan:
  duration: 2s
  name_prefix: "Tag"
session:
  connect_timeout: 3s
tags:
  "aa:bb:cc:dd:ee:ff": Work
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 2*time.Second, cfg.Scan.Duration)
		assert.Equal(t, "Tag", cfg.Scan.NamePrefix)
		assert.Equal(t, 30*time.Millisecond, cfg.Scan.Interval, "unset fields MUST keep defaults")
		assert.Equal(t, 3*time.Second, cfg.Session.ConnectTimeout)
		assert.Equal(t, "Work", cfg.Tags["aa:bb:cc:dd:ee:ff"])
		assert.Equal(t, "Blue", cfg.Tags["ff:ff:33:31:8a:76"], "file tags MUST extend the defaults")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "scan: [unterminated"))
		assert.ErrorContains(t, err, "failed to parse config")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "output_format: xml\n"))
		assert.ErrorContains(t, err, "invalid output format")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "not a valid logrus Level"},
		{name: "bad address type", mutate: func(c *Config) { c.Scan.AddressType = "static" }, wantErr: "invalid address type"},
		{name: "window exceeds interval", mutate: func(c *Config) { c.Scan.Window = time.Second }, wantErr: "exceeds interval"},
		{name: "zero notification buffer", mutate: func(c *Config) { c.Session.NotificationBuffer = 0 }, wantErr: "notification buffer"},
		{name: "bad tag address", mutate: func(c *Config) { c.Tags["nope"] = "Bad" }, wantErr: "tag \"Bad\""},
		{name: "json format is valid", mutate: func(c *Config) { c.OutputFormat = "json" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_KnownTags(t *testing.T) {
	cfg := DefaultConfig()

	tags, err := cfg.KnownTags()
	require.NoError(t, err)

	assert.Equal(t, "Blue", tags[device.MustParseAddress("ff:ff:33:31:8a:76")])
	assert.Len(t, tags, len(DefaultTags))
}

func TestConfig_ScanParams(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, device.ScanParams{
		Duration: 5 * time.Second,
		Interval: 30 * time.Millisecond,
		Window:   30 * time.Millisecond,
		Active:   true,
	}, cfg.ScanParams())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}
