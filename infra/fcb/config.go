package fcb

import (
	"github.com/cockroachdb/errors"

	"flashlog/infra/flash"
)

const (
	// DefaultMagic tags sectors written by this log.
	DefaultMagic uint32 = 0x28090260
	// DefaultVersion is the on-flash format version.
	DefaultVersion uint8 = 0

	// MaxEntryLen is the largest payload a single entry can carry.
	MaxEntryLen = 0xFFFE
)

var (
	ErrNoSpace         = errors.New("fcb: no free sector")
	ErrEnd             = errors.New("fcb: no more entries")
	ErrStale           = errors.New("fcb: position refers to a reclaimed sector")
	ErrInvalidPosition = errors.New("fcb: invalid position")
	ErrInvalidLength   = errors.New("fcb: invalid entry length")
	ErrBadMagic        = errors.New("fcb: sector magic mismatch")
	ErrBadVersion      = errors.New("fcb: sector version mismatch")
	ErrNoSectors       = errors.New("fcb: no sectors configured")
)

// Config describes the ring.
type Config struct {
	Magic   uint32
	Version uint8
	// Align is the flash write block size in bytes. Must be a power of two.
	Align uint32
	// FirstID is the id given to the first sector of an empty area.
	// Carrying a fresh value across an erase keeps positions handed out
	// before it from resolving into the new log.
	FirstID uint16
	// Sectors lists the sectors of the area the ring spans, in ring order.
	Sectors []flash.Sector
}

func (c *Config) normalize() error {
	if len(c.Sectors) == 0 {
		return ErrNoSectors
	}
	if len(c.Sectors) > 0xFFFF {
		return errors.Newf("fcb: %d sectors exceeds ring capacity", len(c.Sectors))
	}
	if c.Align == 0 {
		c.Align = 1
	}
	if c.Align&(c.Align-1) != 0 {
		return errors.Newf("fcb: alignment %d is not a power of two", c.Align)
	}
	return nil
}
