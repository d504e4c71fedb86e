package flash

import (
	"github.com/cockroachdb/errors"
)

// ErasedValue is the byte value of an erased flash cell.
const ErasedValue = 0xFF

var (
	ErrOutOfBounds    = errors.New("flash: access out of bounds")
	ErrUnaligned      = errors.New("flash: erase not sector aligned")
	ErrTooManySectors = errors.New("flash: area has more sectors than requested")
	ErrClosed         = errors.New("flash: area closed")
)

// Sector is one erasable unit of an area, addressed from the area start.
type Sector struct {
	Offset uint32
	Size   uint32
}

// End returns the first offset past the sector.
func (s Sector) End() uint32 {
	return s.Offset + s.Size
}

// Area is a flash region. Offsets are relative to the start of the region.
type Area interface {
	Size() uint32
	Read(off uint32, p []byte) error
	Write(off uint32, p []byte) error
	Erase(off, size uint32) error
	// Sectors returns the sector layout. When the area holds more than max
	// sectors the first max are returned together with ErrTooManySectors.
	Sectors(max int) ([]Sector, error)
}

// layout is a uniform sector geometry shared by the implementations.
type layout struct {
	size       uint32
	sectorSize uint32
}

func newLayout(size, sectorSize uint32) (layout, error) {
	if sectorSize == 0 || size == 0 || size%sectorSize != 0 {
		return layout{}, errors.Newf("flash: size %d is not a multiple of sector size %d", size, sectorSize)
	}
	return layout{size: size, sectorSize: sectorSize}, nil
}

func (l layout) check(off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(l.size) {
		return errors.Wrapf(ErrOutOfBounds, "offset %d len %d size %d", off, n, l.size)
	}
	return nil
}

func (l layout) checkErase(off, size uint32) error {
	if err := l.check(off, int(size)); err != nil {
		return err
	}
	if off%l.sectorSize != 0 || size%l.sectorSize != 0 {
		return errors.Wrapf(ErrUnaligned, "offset %d size %d sector %d", off, size, l.sectorSize)
	}
	return nil
}

func (l layout) sectors(max int) ([]Sector, error) {
	count := int(l.size / l.sectorSize)
	var err error
	if max > 0 && count > max {
		count = max
		err = ErrTooManySectors
	}
	out := make([]Sector, count)
	for i := range out {
		out[i] = Sector{Offset: uint32(i) * l.sectorSize, Size: l.sectorSize}
	}
	return out, err
}

// program applies NOR write semantics of src onto dst.
func program(dst, src []byte) {
	for i := range src {
		dst[i] &= src[i]
	}
}

func fillErased(p []byte) {
	for i := range p {
		p[i] = ErasedValue
	}
}
