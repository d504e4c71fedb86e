package logstore

import (
	"github.com/rs/zerolog"

	"flashlog/infra/fcb"
)

// Config defines the on-flash layout of a store.
type Config struct {
	Magic   uint32
	Version uint8
	// MaxSectors caps how many sectors of the area the ring uses. Extra
	// sectors are left alone. Zero uses every sector.
	MaxSectors int
	// Align is the flash write block size.
	Align uint32
	// MaxEntrySize bounds a single payload. Zero means the ring maximum.
	MaxEntrySize int
}

func DefaultConfig() Config {
	return Config{
		Magic:      fcb.DefaultMagic,
		Version:    fcb.DefaultVersion,
		MaxSectors: 0,
		Align:      1,
	}
}

type Option func(*Store)

// WithLogger sets the logger for lifecycle and failure events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithName labels the store's metrics. Stores sharing a name share series.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}
