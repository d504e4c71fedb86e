// Package checkpoint persists how far each export consumer has read the
// flash log, so shipping resumes after a restart instead of starting over.
package checkpoint

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"flashlog/logstore"
)

// -------------------- Record --------------------

// Checkpoint is the saved progress of one consumer.
type Checkpoint struct {
	Token   logstore.Token
	Shipped uint64 // bytes delivered so far
	Updated int64  // unix nanoseconds
}

// Cursor decodes the saved token.
func (c Checkpoint) Cursor() (logstore.Cursor, error) {
	return logstore.ParseToken(c.Token)
}

const recordLen = logstore.TokenSize + 8 + 8

// binary encoding: [token:16][shipped:8][updated:8]
func encodeRecord(c Checkpoint) []byte {
	buf := make([]byte, recordLen)
	copy(buf, c.Token[:])
	binary.BigEndian.PutUint64(buf[16:24], c.Shipped)
	binary.BigEndian.PutUint64(buf[24:32], uint64(c.Updated))
	return buf
}

func decodeRecord(b []byte) (Checkpoint, error) {
	if len(b) != recordLen {
		return Checkpoint{}, errors.Newf("checkpoint: record of %d bytes, want %d", len(b), recordLen)
	}
	var c Checkpoint
	copy(c.Token[:], b[:16])
	c.Shipped = binary.BigEndian.Uint64(b[16:24])
	c.Updated = int64(binary.BigEndian.Uint64(b[24:32]))
	return c, nil
}

// -------------------- Store --------------------

const keyPrefix = "cursor/"

type Store struct {
	db  *pebble.DB
	now func() time.Time
}

func Open(dir string) (*Store, error) {
	return OpenWith(dir, &pebble.Options{})
}

// OpenWith opens dir with explicit pebble options, e.g. an in-memory FS.
func OpenWith(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint store %s", dir)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func keyFor(consumer string) []byte {
	return []byte(keyPrefix + consumer)
}

// -------------------- API --------------------

// Load returns the checkpoint of consumer. ok is false when none was saved,
// in which case the zero Checkpoint starts at the oldest entry.
func (s *Store) Load(consumer string) (c Checkpoint, ok bool, err error) {
	val, closer, err := s.db.Get(keyFor(consumer))
	if errors.Is(err, pebble.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, errors.Wrapf(err, "load checkpoint %q", consumer)
	}
	defer closer.Close()

	c, err = decodeRecord(val)
	if err != nil {
		return Checkpoint{}, false, err
	}
	return c, true, nil
}

// Save records that consumer has received shipped more bytes and should
// resume at cur.
func (s *Store) Save(consumer string, cur logstore.Cursor, shipped uint64) (Checkpoint, error) {
	prev, _, err := s.Load(consumer)
	if err != nil {
		return Checkpoint{}, err
	}
	c := Checkpoint{
		Token:   cur.Token(),
		Shipped: prev.Shipped + shipped,
		Updated: s.now().UnixNano(),
	}
	if err := s.db.Set(keyFor(consumer), encodeRecord(c), pebble.Sync); err != nil {
		return Checkpoint{}, errors.Wrapf(err, "save checkpoint %q", consumer)
	}
	return c, nil
}

// Reset forgets consumer, e.g. after the flash log was erased.
func (s *Store) Reset(consumer string) error {
	return s.db.Delete(keyFor(consumer), pebble.Sync)
}

// -------------------- Scan --------------------

// Scan calls fn for every saved consumer in key order.
func (s *Store) Scan(fn func(consumer string, c Checkpoint) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("cursor0"), // '0' follows '/'
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		c, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(string(iter.Key()[len(keyPrefix):]), c); err != nil {
			return err
		}
	}
	return iter.Error()
}
