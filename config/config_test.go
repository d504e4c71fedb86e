package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(64<<10), cfg.Flash.Size)
	assert.Equal(t, uint32(0x28090260), cfg.Flash.Magic)
	assert.Equal(t, "text", cfg.Backend.Format)
	assert.Equal(t, 5*time.Second, cfg.Export.Interval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Export.Brokers)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flash:
  path: /var/lib/flashlog.img
  sector_size: 1024
  size: 8192
backend:
  format: json
export:
  enabled: true
  interval: 250ms
  brokers: [k1:9092]
`), 0o644))

	t.Setenv("FLASHLOG_FLASH_SECTOR_SIZE", "2048")
	t.Setenv("FLASHLOG_EXPORT_BROKERS", "a:9092,b:9092")
	t.Setenv("FLASHLOG_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/flashlog.img", cfg.Flash.Path)
	assert.Equal(t, uint32(2048), cfg.Flash.SectorSize)
	assert.Equal(t, uint32(8192), cfg.Flash.Size)
	assert.Equal(t, "json", cfg.Backend.Format)
	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Export.Interval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Export.Brokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"size not multiple", func(c *Config) { c.Flash.Size = 5000 }, "flash.size"},
		{"single sector", func(c *Config) { c.Flash.Size = c.Flash.SectorSize }, "flash.size"},
		{"align", func(c *Config) { c.Flash.Align = 3 }, "flash.align"},
		{"entry size", func(c *Config) { c.Flash.MaxEntrySize = 1 << 20 }, "flash.max_entry_size"},
		{"format", func(c *Config) { c.Backend.Format = "xml" }, "backend.format"},
		{"driver", func(c *Config) { c.Export.Enabled = true; c.Export.Driver = "nats" }, "export.driver"},
		{"topic", func(c *Config) { c.Export.Enabled = true; c.Export.Topic = "" }, "export.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.edit(cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "flash.max_entry_size", envKey("FLASHLOG_FLASH_MAX_ENTRY_SIZE"))
	assert.Equal(t, "server.grpc_addr", envKey("FLASHLOG_SERVER_GRPC_ADDR"))
	assert.Equal(t, "", envKey("FLASHLOG_CONFIG"))
}

func TestEnvValue_SplitsLists(t *testing.T) {
	key, val := envValue("FLASHLOG_EXPORT_BROKERS", "a:9092, b:9092,,")
	assert.Equal(t, "export.brokers", key)
	assert.Equal(t, []string{"a:9092", "b:9092"}, val)

	key, val = envValue("FLASHLOG_EXPORT_TOPIC", "logs,raw")
	assert.Equal(t, "export.topic", key)
	assert.Equal(t, "logs,raw", val)
}
