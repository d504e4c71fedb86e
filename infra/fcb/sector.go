package fcb

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	// Sector header: [magic:4][version:1][pad:1][id:2]
	sectorHeaderSize = 8
	lenFieldSize     = 2
	crcSize          = 4

	erasedMagic = 0xFFFFFFFF
	erasedLen   = 0xFFFF
)

type sectorHeader struct {
	magic   uint32
	version uint8
	id      uint16
}

func (h sectorHeader) erased() bool {
	return h.magic == erasedMagic
}

func (h sectorHeader) encode(align uint32) []byte {
	buf := erasedBuf(alignUp(sectorHeaderSize, align))
	binary.LittleEndian.PutUint32(buf[0:4], h.magic)
	buf[4] = h.version
	binary.LittleEndian.PutUint16(buf[6:8], h.id)
	return buf
}

func decodeSectorHeader(b []byte) sectorHeader {
	return sectorHeader{
		magic:   binary.LittleEndian.Uint32(b[0:4]),
		version: b[4],
		id:      binary.LittleEndian.Uint16(b[6:8]),
	}
}

func (f *FCB) readHeader(s int) (sectorHeader, error) {
	var b [sectorHeaderSize]byte
	if err := f.area.Read(f.sectors[s].Offset, b[:]); err != nil {
		return sectorHeader{}, errors.Wrapf(err, "read header of sector %d", s)
	}
	return decodeSectorHeader(b[:]), nil
}

func (f *FCB) writeHeader(s int, id uint16) error {
	h := sectorHeader{magic: f.cfg.Magic, version: f.cfg.Version, id: id}
	if err := f.area.Write(f.sectors[s].Offset, h.encode(f.cfg.Align)); err != nil {
		return errors.Wrapf(err, "write header of sector %d", s)
	}
	f.ids[s] = id
	f.used[s] = true
	return nil
}

// openSector makes s the active sector with the given id.
func (f *FCB) openSector(s int, id uint16) error {
	if err := f.writeHeader(s, id); err != nil {
		return err
	}
	f.active = s
	f.activeID = id
	f.next = f.hdrLen
	return nil
}

// recoverTail walks the committed and reserved entries of sector s and
// returns the offset where the next entry goes.
func (f *FCB) recoverTail(s int) (uint32, error) {
	size := f.sectors[s].Size
	off := f.hdrLen
	for off+f.lenLen <= size {
		n, err := f.readLen(s, off)
		if err != nil {
			return 0, err
		}
		if n == erasedLen {
			return off, nil
		}
		total := f.entrySize(n)
		if n == 0 || off+total > size {
			// Unparseable tail; treat the rest of the sector as used.
			return size, nil
		}
		off += total
	}
	return size, nil
}

func (f *FCB) readLen(s int, off uint32) (uint32, error) {
	var b [lenFieldSize]byte
	if err := f.area.Read(f.sectors[s].Offset+off, b[:]); err != nil {
		return 0, errors.Wrapf(err, "read entry length at sector %d offset %d", s, off)
	}
	return uint32(binary.LittleEndian.Uint16(b[:])), nil
}

func (f *FCB) nextSector(s int) int {
	return (s + 1) % len(f.sectors)
}

// idBefore reports whether sector id a was opened before b, allowing the
// 16-bit counter to wrap.
func idBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

func (f *FCB) entrySize(n uint32) uint32 {
	return f.lenLen + alignUp(n, f.cfg.Align) + f.crcLen
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

func erasedBuf(n uint32) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}
