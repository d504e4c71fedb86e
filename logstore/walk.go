package logstore

import (
	"github.com/cockroachdb/errors"

	"flashlog/infra/fcb"
)

// Walk calls fn with every entry, oldest first. The slice is reused between
// calls. An error from fn stops the walk and is returned as is.
func (s *Store) Walk(fn func(entry []byte) error) error {
	if !s.ready {
		return ErrNotReady
	}
	buf := make([]byte, 0, s.maxEntry)
	var stop error
	err := s.log.Walk(func(loc fcb.Location) error {
		if int(loc.Len) > cap(buf) {
			buf = make([]byte, loc.Len)
		}
		buf = buf[:loc.Len]
		if err := s.area.Read(loc.DataOffset, buf); err != nil {
			return markIO(err, "read entry at %d", loc.DataOffset)
		}
		if err := fn(buf); err != nil {
			stop = err
			return err
		}
		return nil
	})
	if stop != nil {
		return stop
	}
	if err != nil && !errors.Is(err, ErrIO) {
		return markIO(err, "walk")
	}
	return err
}
