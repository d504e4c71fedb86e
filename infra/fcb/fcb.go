package fcb

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"flashlog/infra/flash"
)

// FCB is a flash circular buffer. It is not safe for concurrent use.
type FCB struct {
	area    flash.Area
	cfg     Config
	sectors []flash.Sector

	ids  []uint16
	used []bool

	oldest   int
	active   int
	activeID uint16
	// next is the write offset inside the active sector.
	next uint32

	hdrLen uint32
	lenLen uint32
	crcLen uint32
}

// Stats is a snapshot of the ring state.
type Stats struct {
	Sectors     int
	UsedSectors int
	OldestID    uint16
	ActiveID    uint16
	// ActiveFree is the room left in the active sector.
	ActiveFree uint32
}

// New attaches to the ring described by cfg. Existing contents are adopted
// as they are; an area without any valid sector gets a fresh first sector.
func New(area flash.Area, cfg Config) (*FCB, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	f := &FCB{
		area:    area,
		cfg:     cfg,
		sectors: cfg.Sectors,
		ids:     make([]uint16, len(cfg.Sectors)),
		used:    make([]bool, len(cfg.Sectors)),
		hdrLen:  alignUp(sectorHeaderSize, cfg.Align),
		lenLen:  alignUp(lenFieldSize, cfg.Align),
		crcLen:  alignUp(crcSize, cfg.Align),
	}
	for i, s := range f.sectors {
		if s.Size < f.hdrLen+f.entrySize(1) {
			return nil, errors.Newf("fcb: sector %d of %d bytes is too small", i, s.Size)
		}
	}
	if err := f.scan(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FCB) scan() error {
	oldest, newest := -1, -1
	for i := range f.sectors {
		h, err := f.readHeader(i)
		if err != nil {
			return err
		}
		if h.erased() {
			continue
		}
		if h.magic != f.cfg.Magic {
			return errors.Wrapf(ErrBadMagic, "sector %d: %#08x", i, h.magic)
		}
		if h.version != f.cfg.Version {
			return errors.Wrapf(ErrBadVersion, "sector %d: %d", i, h.version)
		}
		f.ids[i] = h.id
		f.used[i] = true
		if oldest < 0 {
			oldest, newest = i, i
			continue
		}
		if idBefore(h.id, f.ids[oldest]) {
			oldest = i
		}
		if idBefore(f.ids[newest], h.id) {
			newest = i
		}
	}

	if oldest < 0 {
		f.oldest = 0
		return f.openSector(0, f.cfg.FirstID)
	}

	tail, err := f.recoverTail(newest)
	if err != nil {
		return err
	}
	f.oldest = oldest
	f.active = newest
	f.activeID = f.ids[newest]
	f.next = tail
	return nil
}

// Append reserves room for an entry of n payload bytes. ErrNoSpace means
// every sector is in use and Rotate must be called first.
func (f *FCB) Append(n int) (*Reservation, error) {
	if n <= 0 || n > MaxEntryLen {
		return nil, errors.Wrapf(ErrInvalidLength, "%d bytes", n)
	}
	total := f.entrySize(uint32(n))
	if f.hdrLen+total > f.sectors[f.active].Size {
		return nil, errors.Wrapf(ErrInvalidLength, "%d bytes does not fit a sector", n)
	}

	if f.next+total > f.sectors[f.active].Size {
		s := f.nextSector(f.active)
		if s == f.oldest {
			return nil, ErrNoSpace
		}
		if err := f.openSector(s, f.activeID+1); err != nil {
			return nil, err
		}
	}

	off := f.next
	// The slot is consumed even if the length write fails, so a later
	// entry never lands on partially programmed bits.
	f.next += total

	lenField := erasedBuf(f.lenLen)
	binary.LittleEndian.PutUint16(lenField, uint16(n))
	if err := f.area.Write(f.sectors[f.active].Offset+off, lenField); err != nil {
		return nil, errors.Wrapf(err, "write entry length at sector %d offset %d", f.active, off)
	}
	return &Reservation{f: f, loc: f.location(f.active, off, uint32(n))}, nil
}

// Rotate erases the oldest sector. Its entries become unreadable.
func (f *FCB) Rotate() error {
	s := f.oldest
	sec := f.sectors[s]
	if err := f.area.Erase(sec.Offset, sec.Size); err != nil {
		return errors.Wrapf(err, "erase sector %d", s)
	}
	f.used[s] = false

	if s == f.active {
		return f.openSector(s, f.activeID+1)
	}
	for n := f.nextSector(s); ; n = f.nextSector(n) {
		if f.used[n] {
			f.oldest = n
			return nil
		}
	}
}

func (f *FCB) Stats() Stats {
	st := Stats{
		Sectors:    len(f.sectors),
		OldestID:   f.ids[f.oldest],
		ActiveID:   f.activeID,
		ActiveFree: f.sectors[f.active].Size - f.next,
	}
	for _, u := range f.used {
		if u {
			st.UsedSectors++
		}
	}
	return st
}

// Area returns the flash area the ring lives on.
func (f *FCB) Area() flash.Area {
	return f.area
}

// MaxPayload is the largest payload Append accepts on this ring.
func (f *FCB) MaxPayload() int {
	smallest := f.sectors[0].Size
	for _, s := range f.sectors[1:] {
		smallest = min(smallest, s.Size)
	}
	room := (smallest - f.hdrLen - f.lenLen - f.crcLen) &^ (f.cfg.Align - 1)
	return min(int(room), MaxEntryLen)
}
