package fcb

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Position names an entry by sector index, the id the sector carried when
// the entry was written, and the entry offset inside the sector. The zero
// Position means "before the first entry".
type Position struct {
	Sector uint16
	ID     uint16
	Offset uint32
}

func (p Position) IsZero() bool {
	return p == Position{}
}

// Location is a resolved entry.
type Location struct {
	Position
	// DataOffset is the absolute area offset of the first payload byte.
	DataOffset uint32
	Len        uint32
}

// DataEnd is the absolute area offset just past the payload.
func (l Location) DataEnd() uint32 {
	return l.DataOffset + l.Len
}

func (f *FCB) location(s int, off, n uint32) Location {
	return Location{
		Position: Position{
			Sector: uint16(s),
			ID:     f.ids[s],
			Offset: off,
		},
		DataOffset: f.sectors[s].Offset + off + f.lenLen,
		Len:        n,
	}
}

// Reservation is space claimed by Append. It must end in exactly one of
// Commit or Abort; the second call of either is a no-op, so
//
//	res, err := log.Append(n)
//	...
//	defer res.Abort()
//	...
//	return res.Commit()
//
// releases the slot on every path.
type Reservation struct {
	f    *FCB
	loc  Location
	done bool
}

func (r *Reservation) Location() Location {
	return r.loc
}

// Write programs the payload into the reserved slot.
func (r *Reservation) Write(p []byte) error {
	if r.done {
		return errors.New("fcb: write to finished reservation")
	}
	if uint32(len(p)) != r.loc.Len {
		return errors.Wrapf(ErrInvalidLength, "payload %d, reserved %d", len(p), r.loc.Len)
	}
	return r.f.area.Write(r.loc.DataOffset, p)
}

// Commit seals the entry with the checksum of what is actually on flash.
func (r *Reservation) Commit() error {
	if r.done {
		return nil
	}
	r.done = true
	sum, err := r.f.checksum(r.loc)
	if err != nil {
		return err
	}
	return r.f.writeCRC(r.loc, sum)
}

// Abort seals the slot with a checksum that can never verify, so readers
// skip it.
func (r *Reservation) Abort() error {
	if r.done {
		return nil
	}
	r.done = true
	sum, err := r.f.checksum(r.loc)
	if err != nil {
		sum = 0
	}
	return r.f.writeCRC(r.loc, ^sum)
}

func (f *FCB) checksum(loc Location) (uint32, error) {
	payload := make([]byte, loc.Len)
	if err := f.area.Read(loc.DataOffset, payload); err != nil {
		return 0, errors.Wrapf(err, "read back entry at %d", loc.DataOffset)
	}
	return entryChecksum(loc.Len, payload), nil
}

func (f *FCB) crcOffset(loc Location) uint32 {
	return loc.DataOffset + alignUp(loc.Len, f.cfg.Align)
}

func (f *FCB) writeCRC(loc Location, sum uint32) error {
	buf := erasedBuf(f.crcLen)
	binary.LittleEndian.PutUint32(buf, sum)
	if err := f.area.Write(f.crcOffset(loc), buf); err != nil {
		return errors.Wrapf(err, "write checksum at %d", f.crcOffset(loc))
	}
	return nil
}

// verify reports whether the stored checksum matches the entry.
func (f *FCB) verify(loc Location) (bool, error) {
	sum, err := f.checksum(loc)
	if err != nil {
		return false, err
	}
	var b [crcSize]byte
	if err := f.area.Read(f.crcOffset(loc), b[:]); err != nil {
		return false, errors.Wrapf(err, "read checksum at %d", f.crcOffset(loc))
	}
	return binary.LittleEndian.Uint32(b[:]) == sum, nil
}
