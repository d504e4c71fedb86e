package logstore

import (
	"github.com/cockroachdb/errors"

	"flashlog/infra/fcb"
)

// Read copies entries following cur into buf, oldest first, and advances
// cur. Whole entries are packed back to back with no framing. An entry is
// only started at the front of buf: if it does not fit behind entries
// already copied the call returns early, and if it does not fit an empty
// buf its first len(buf) bytes are returned and the rest follows on the
// next calls.
//
// When the log is exhausted cur is reset to the zero Cursor. Entries
// reclaimed by rotation between calls are skipped without notice.
//
// On error nothing is reported as read and cur is left untouched, so the
// same call can be retried without losing data. Read errors do not disable
// the store.
func (s *Store) Read(buf []byte, cur *Cursor) (int, error) {
	n, _, err := s.read(buf, cur)
	return n, err
}

// read is Read that also reports the position of the last entry visited,
// which survives the reset of cur at end of log.
func (s *Store) read(buf []byte, cur *Cursor) (int, fcb.Position, error) {
	if cur == nil || len(buf) == 0 {
		return 0, fcb.Position{}, errors.Wrap(ErrInvalidArgument, "empty buffer or nil cursor")
	}
	if !s.ready {
		return 0, cur.pos, ErrNotReady
	}

	next := *cur
	total := 0
	if next.split != 0 {
		n, done, err := s.resumeSplit(buf, &next)
		if err != nil {
			s.metrics.readErrors.Inc()
			return 0, cur.pos, err
		}
		total = n
		if !done {
			*cur = next
			s.metrics.readBytes.Add(float64(total))
			return total, next.pos, nil
		}
	}

	for {
		loc, err := s.log.GetNext(next.pos)
		if errors.Is(err, fcb.ErrEnd) {
			break
		}
		if err != nil {
			s.metrics.readErrors.Inc()
			return 0, cur.pos, s.iterErr(err, next.pos)
		}

		n := int(loc.Len)
		split := false
		if total+n > len(buf) {
			if total > 0 {
				*cur = next
				s.metrics.readBytes.Add(float64(total))
				return total, next.pos, nil
			}
			n = len(buf)
			split = true
		}
		if err := s.area.Read(loc.DataOffset, buf[total:total+n]); err != nil {
			s.metrics.readErrors.Inc()
			return 0, cur.pos, markIO(err, "read entry at %d", loc.DataOffset)
		}
		total += n
		next.pos = loc.Position
		if split {
			next.split = loc.DataOffset + uint32(n)
			*cur = next
			s.metrics.readBytes.Add(float64(total))
			return total, next.pos, nil
		}
	}

	visited := next.pos
	*cur = Cursor{}
	s.metrics.readBytes.Add(float64(total))
	return total, visited, nil
}

// resumeSplit continues an entry a previous call stopped inside. done
// reports whether the entry is now fully delivered.
func (s *Store) resumeSplit(buf []byte, c *Cursor) (n int, done bool, err error) {
	loc, err := s.log.EntryAt(c.pos)
	if errors.Is(err, fcb.ErrStale) {
		// Reclaimed mid-split; the rest of the entry is gone.
		s.logger.Debug().Stringer("cursor", *c).Msg("split entry reclaimed")
		c.split = 0
		return 0, true, nil
	}
	if err != nil {
		return 0, false, s.iterErr(err, c.pos)
	}
	if c.split <= loc.DataOffset || c.split >= loc.DataEnd() {
		return 0, false, errors.Wrapf(ErrInvalidArgument, "split offset %d outside entry [%d,%d)", c.split, loc.DataOffset, loc.DataEnd())
	}

	remaining := int(loc.DataEnd() - c.split)
	n = min(remaining, len(buf))
	if err := s.area.Read(c.split, buf[:n]); err != nil {
		return 0, false, markIO(err, "read split entry at %d", c.split)
	}
	if remaining > len(buf) {
		c.split += uint32(n)
		return n, false, nil
	}
	c.split = 0
	return n, true, nil
}

func (s *Store) iterErr(err error, pos fcb.Position) error {
	if errors.Is(err, fcb.ErrInvalidPosition) {
		return invalid(err, "cursor position %+v", pos)
	}
	return markIO(err, "iterate from %+v", pos)
}
