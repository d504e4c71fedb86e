// Package logging builds the process zerolog.Logger.
//
// Components never reach for a global logger; main constructs one here and
// passes it down.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
	// Caller adds file:line to every event.
	Caller bool `koanf:"caller"`
	// Output defaults to os.Stderr.
	Output io.Writer `koanf:"-"`
}

func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
	}
}

// ParseLevel maps a name to a zerolog level, falling back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New returns a logger writing to cfg.Output and, as JSON, to every tee.
// Tees are typically the flash log itself.
func New(cfg Config, tees ...io.Writer) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if len(tees) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, tees...)...)
	}

	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
