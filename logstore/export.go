package logstore

import (
	"io"
)

// Export is one pass over the log built on Read. Unlike a bare Cursor it
// remembers that it has started, so once the end of the log is reached
// further calls return io.EOF instead of starting over.
type Export struct {
	s    *Store
	cur  Cursor
	tail Cursor
	done bool
}

// NewExport starts an export at from. The zero Cursor starts at the oldest
// entry; a Checkpoint of an earlier export resumes after what it delivered.
func (s *Store) NewExport(from Cursor) *Export {
	return &Export{s: s, cur: from, tail: from}
}

// Next fills buf like Store.Read. It returns 0, io.EOF after the call that
// drained the log.
func (e *Export) Next(buf []byte) (int, error) {
	if e.done {
		return 0, io.EOF
	}
	n, visited, err := e.s.read(buf, &e.cur)
	if err != nil {
		return 0, err
	}
	if e.cur.IsZero() {
		e.done = true
		e.tail = Cursor{pos: visited}
	} else {
		e.tail = e.cur
	}
	return n, nil
}

func (e *Export) Done() bool {
	return e.done
}

// Cursor is the raw cursor as Read left it.
func (e *Export) Cursor() Cursor {
	return e.cur
}

// Checkpoint is where a later export should start to receive only what this
// one has not delivered yet. Unlike Cursor it is not reset at end of log.
func (e *Export) Checkpoint() Cursor {
	return e.tail
}
