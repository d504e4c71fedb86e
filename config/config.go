// Package config loads flashlog settings from defaults, an optional YAML
// file and FLASHLOG_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"time"

	"flashlog/infra/fcb"
	"flashlog/infra/logging"
)

type Config struct {
	Flash   FlashConfig    `koanf:"flash"`
	Backend BackendConfig  `koanf:"backend"`
	Server  ServerConfig   `koanf:"server"`
	Export  ExportConfig   `koanf:"export"`
	Logging logging.Config `koanf:"logging"`
}

// FlashConfig describes the flash image and the ring laid over it.
type FlashConfig struct {
	// Path of the image file. Created and erased when missing.
	Path         string `koanf:"path"`
	Size         uint32 `koanf:"size"`
	SectorSize   uint32 `koanf:"sector_size"`
	MaxSectors   int    `koanf:"max_sectors"`
	Align        uint32 `koanf:"align"`
	Magic        uint32 `koanf:"magic"`
	MaxEntrySize int    `koanf:"max_entry_size"`
}

type BackendConfig struct {
	// Format is text, json or proto.
	Format         string `koanf:"format"`
	MaxMessageSize int    `koanf:"max_message_size"`
}

type ServerConfig struct {
	GRPCAddr    string `koanf:"grpc_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	// LogToFlash tees the server's own log into the store.
	LogToFlash bool `koanf:"log_to_flash"`
}

type ExportConfig struct {
	Enabled bool `koanf:"enabled"`
	// Driver is kafka-go or sarama.
	Driver        string        `koanf:"driver"`
	Brokers       []string      `koanf:"brokers"`
	Topic         string        `koanf:"topic"`
	Consumer      string        `koanf:"consumer"`
	ChunkSize     int           `koanf:"chunk_size"`
	Interval      time.Duration `koanf:"interval"`
	CheckpointDir string        `koanf:"checkpoint_dir"`
}

func defaultConfig() *Config {
	return &Config{
		Flash: FlashConfig{
			Path:       "flashlog.img",
			Size:       64 << 10,
			SectorSize: 4 << 10,
			Align:      1,
			Magic:      fcb.DefaultMagic,
		},
		Backend: BackendConfig{
			Format:         "text",
			MaxMessageSize: 256,
		},
		Server: ServerConfig{
			GRPCAddr:    ":50051",
			MetricsAddr: ":9464",
		},
		Export: ExportConfig{
			Driver:        "kafka-go",
			Brokers:       []string{"localhost:9092"},
			Topic:         "flashlog",
			Consumer:      "default",
			ChunkSize:     1024,
			Interval:      5 * time.Second,
			CheckpointDir: "flashlog-checkpoints",
		},
		Logging: logging.DefaultConfig(),
	}
}

// ConfigError reports the first invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks cross-field constraints the flash layer would otherwise
// reject at startup with a less obvious error.
func (c *Config) Validate() error {
	f := c.Flash
	switch {
	case f.Path == "":
		return invalid("flash.path", "must be set")
	case f.SectorSize == 0:
		return invalid("flash.sector_size", "must be positive")
	case f.Size == 0 || f.Size%f.SectorSize != 0:
		return invalid("flash.size", "%d is not a multiple of sector size %d", f.Size, f.SectorSize)
	case f.Size/f.SectorSize < 2:
		return invalid("flash.size", "need at least 2 sectors, have %d", f.Size/f.SectorSize)
	case f.MaxSectors < 0:
		return invalid("flash.max_sectors", "must not be negative")
	case f.Align == 0 || f.Align&(f.Align-1) != 0:
		return invalid("flash.align", "%d is not a power of two", f.Align)
	case f.MaxEntrySize < 0 || f.MaxEntrySize > fcb.MaxEntryLen:
		return invalid("flash.max_entry_size", "must be within [0, %d]", fcb.MaxEntryLen)
	}

	switch c.Backend.Format {
	case "text", "json", "proto":
	default:
		return invalid("backend.format", "unknown format %q", c.Backend.Format)
	}
	if c.Backend.MaxMessageSize <= 0 {
		return invalid("backend.max_message_size", "must be positive")
	}

	if c.Export.Enabled {
		e := c.Export
		switch {
		case e.Driver != "kafka-go" && e.Driver != "sarama":
			return invalid("export.driver", "unknown driver %q", e.Driver)
		case len(e.Brokers) == 0:
			return invalid("export.brokers", "required when export is enabled")
		case e.Topic == "":
			return invalid("export.topic", "required when export is enabled")
		case e.ChunkSize <= 0:
			return invalid("export.chunk_size", "must be positive")
		case e.Interval <= 0:
			return invalid("export.interval", "must be positive")
		case e.CheckpointDir == "":
			return invalid("export.checkpoint_dir", "required when export is enabled")
		}
	}
	return nil
}
