package service

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"flashlog/backend"
	"flashlog/infra/fcb"
	"flashlog/logstore"
	"flashlog/record"
)

/*
LogService is the only entry point into the store once it is shared.

Every call takes the mutex, so Read and Write never interleave on flash.
A Drain holds the lock one chunk at a time, letting writers in between.
*/
type LogService struct {
	mu      sync.Mutex
	store   *logstore.Store
	backend *backend.Backend
	logger  zerolog.Logger
}

// Status is a snapshot of the store for operators.
type Status struct {
	Ready        bool
	MaxEntrySize int
	Format       record.Format
	Stats        fcb.Stats
}

func NewLogService(store *logstore.Store, be *backend.Backend, logger zerolog.Logger) *LogService {
	return &LogService{
		store:   store,
		backend: be,
		logger:  logger,
	}
}

//
// ──────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────
//

// Init attaches the store to flash.
func (s *LogService) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Init()
}

// Erase wipes the flash area and restarts with an empty log.
func (s *LogService) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Warn().Msg("erasing log store")
	return s.store.EraseAndReinit()
}

// RecoverSequence continues record numbering after the highest sequence
// found on flash. Entries the current format cannot decode are ignored.
func (s *LogService) RecoverSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, err := record.For(s.backend.Format())
	if err != nil {
		return 0, err
	}
	var last uint64
	err = s.store.Walk(func(entry []byte) error {
		if rec, err := ser.Decode(entry); err == nil && rec.Seq > last {
			last = rec.Seq
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if last > s.backend.Sequencer().Current() {
		s.backend.Sequencer().Reset(last)
	}
	return last, nil
}

func (s *LogService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _ := s.store.Stats()
	return Status{
		Ready:        s.store.Ready(),
		MaxEntrySize: s.store.MaxEntrySize(),
		Format:       s.backend.Format(),
		Stats:        st,
	}
}

//
// ──────────────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────────────
//

// Log formats one message and stores it. It returns the record sequence.
func (s *LogService) Log(level record.Level, source, msg string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &record.Record{Level: level, Source: source, Message: msg}
	if err := s.backend.Process(rec); err != nil {
		return 0, err
	}
	return rec.Seq, nil
}

// Dropped stores a notice that n messages were lost upstream.
func (s *LogService) Dropped(n uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Dropped(n)
}

func (s *LogService) SetFormat(f record.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.SetFormat(f)
}

// WriteRaw stores p verbatim as one entry.
func (s *LogService) WriteRaw(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Write(p)
}

// RawWriter is a locked version of backend.Backend.RawWriter, suitable as
// a zerolog output shared across goroutines.
func (s *LogService) RawWriter() io.Writer {
	return lockedWriter{s: s, w: s.backend.RawWriter()}
}

type lockedWriter struct {
	s *LogService
	w io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.w.Write(p)
}

//
// ──────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────
//

// ReadChunk is one Store.Read with the cursor in token form, for callers
// that keep the cursor outside the process.
func (s *LogService) ReadChunk(buf []byte, tok logstore.Token) (int, logstore.Token, error) {
	cur, err := logstore.ParseToken(tok)
	if err != nil {
		return 0, tok, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.Read(buf, &cur)
	if err != nil {
		return 0, tok, err
	}
	return n, cur.Token(), nil
}

// DrainFunc receives one chunk and the cursor to resume from once the chunk
// is safely delivered. It must not keep the slice.
type DrainFunc func(chunk []byte, next logstore.Cursor) error

// Drain exports everything after from in chunks of up to chunk bytes and
// hands each to fn. It returns the checkpoint after the last chunk fn
// accepted, which is where the next Drain should start.
func (s *LogService) Drain(ctx context.Context, from logstore.Cursor, chunk int, fn DrainFunc) (logstore.Cursor, error) {
	if chunk <= 0 {
		return from, errors.Wrapf(logstore.ErrInvalidArgument, "chunk size %d", chunk)
	}
	exp := s.store.NewExport(from)
	buf := make([]byte, chunk)
	acked := from

	for {
		if err := ctx.Err(); err != nil {
			return acked, err
		}

		s.mu.Lock()
		n, err := exp.Next(buf)
		s.mu.Unlock()

		if errors.Is(err, io.EOF) {
			return acked, nil
		}
		if err != nil {
			return acked, err
		}
		next := exp.Checkpoint()
		if n > 0 {
			if err := fn(buf[:n], next); err != nil {
				return acked, errors.Wrap(err, "deliver chunk")
			}
		}
		acked = next
	}
}
