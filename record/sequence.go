package record

import "sync/atomic"

// Sequencer hands out strictly increasing record sequence numbers.
type Sequencer struct {
	next atomic.Uint64
}

// NewSequencer starts after start; the first Next returns start+1.
func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset moves the sequencer, e.g. past the newest record found on flash
// after a restart.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
