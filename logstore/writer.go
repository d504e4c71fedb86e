package logstore

import (
	"github.com/cockroachdb/errors"

	"flashlog/infra/fcb"
)

// Write appends p as one entry and returns len(p). When the ring is full
// the oldest sector is reclaimed and the reservation retried once. Any
// failure past that point disables the store.
//
// Write makes Store an io.Writer where each call is one entry.
func (s *Store) Write(p []byte) (n int, err error) {
	defer func() {
		if err != nil {
			s.metrics.writeErrors.WithLabelValues(errorKind(err)).Inc()
		}
	}()

	if !s.ready {
		return 0, ErrNotReady
	}
	if len(p) == 0 || len(p) > s.maxEntry {
		return 0, errors.Wrapf(ErrInvalidArgument, "payload of %d bytes, limit %d", len(p), s.maxEntry)
	}

	res, err := s.log.Append(len(p))
	if errors.Is(err, fcb.ErrNoSpace) {
		if rerr := s.log.Rotate(); rerr != nil {
			s.disable(rerr)
			return 0, withKind(errors.Wrap(rerr, "rotate"), ErrOutOfMemory)
		}
		s.metrics.rotations.Inc()
		s.logger.Debug().Msg("rotated oldest sector")
		res, err = s.log.Append(len(p))
	}
	if err != nil {
		s.disable(err)
		return 0, markIO(err, "reserve %d bytes", len(p))
	}
	return s.commit(res, p)
}

func (s *Store) commit(res *fcb.Reservation, p []byte) (int, error) {
	// Abort is a no-op once Commit ran; on every other path it seals the
	// slot so readers skip it.
	defer func() { _ = res.Abort() }()

	if err := res.Write(p); err != nil {
		s.disable(err)
		return 0, markIO(err, "write payload")
	}
	if err := res.Commit(); err != nil {
		s.disable(err)
		return 0, markIO(err, "commit entry")
	}
	s.metrics.writes.Inc()
	s.metrics.writeBytes.Add(float64(len(p)))
	return len(p), nil
}
