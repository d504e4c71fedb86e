package fcb

import (
	"github.com/cockroachdb/errors"
)

// GetNext returns the first committed entry after pos, oldest first. A zero
// pos starts at the oldest entry. A pos whose sector was reclaimed since it
// was handed out resumes at the oldest surviving entry. Entries whose
// checksum does not verify are skipped.
func (f *FCB) GetNext(pos Position) (Location, error) {
	if pos.IsZero() {
		return f.scanFrom(f.oldest, f.hdrLen)
	}
	loc, err := f.EntryAt(pos)
	switch {
	case errors.Is(err, ErrStale):
		return f.scanFrom(f.oldest, f.hdrLen)
	case err != nil:
		return Location{}, err
	}
	return f.scanFrom(int(pos.Sector), pos.Offset+f.entrySize(loc.Len))
}

// EntryAt resolves pos without verifying the entry checksum.
func (f *FCB) EntryAt(pos Position) (Location, error) {
	s := int(pos.Sector)
	if s >= len(f.sectors) || pos.Offset < f.hdrLen || pos.Offset >= f.sectors[s].Size {
		return Location{}, errors.Wrapf(ErrInvalidPosition, "%+v", pos)
	}
	if !f.used[s] || f.ids[s] != pos.ID {
		return Location{}, ErrStale
	}
	n, err := f.readLen(s, pos.Offset)
	if err != nil {
		return Location{}, err
	}
	if n == erasedLen || n == 0 || pos.Offset+f.entrySize(n) > f.sectors[s].Size {
		return Location{}, errors.Wrapf(ErrInvalidPosition, "%+v: no entry", pos)
	}
	return f.location(s, pos.Offset, n), nil
}

func (f *FCB) scanFrom(s int, off uint32) (Location, error) {
	for {
		if f.used[s] {
			limit := f.sectors[s].Size
			if s == f.active {
				limit = f.next
			}
			for off+f.lenLen <= limit {
				n, err := f.readLen(s, off)
				if err != nil {
					return Location{}, err
				}
				total := f.entrySize(n)
				if n == erasedLen || n == 0 || off+total > limit {
					break
				}
				loc := f.location(s, off, n)
				ok, err := f.verify(loc)
				if err != nil {
					return Location{}, err
				}
				if ok {
					return loc, nil
				}
				off += total
			}
		}
		if s == f.active {
			return Location{}, ErrEnd
		}
		s = f.nextSector(s)
		off = f.hdrLen
	}
}

// Walk calls fn for every committed entry, oldest first.
func (f *FCB) Walk(fn func(Location) error) error {
	var pos Position
	for {
		loc, err := f.GetNext(pos)
		if errors.Is(err, ErrEnd) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(loc); err != nil {
			return err
		}
		pos = loc.Position
	}
}
