// Package backend formats log records and stores each one as a single flash
// entry.
package backend

import (
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"flashlog/record"
)

// DefaultMaxMessageSize bounds one encoded record.
const DefaultMaxMessageSize = 256

var (
	truncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashlog_backend_truncated_total",
		Help: "Records cut to the maximum message size.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashlog_backend_dropped_total",
		Help: "Messages reported dropped upstream of the backend.",
	})
	oversizeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashlog_backend_oversize_total",
		Help: "Framed records dropped for exceeding the maximum message size.",
	})
)

// errOversize means a framed record does not fit one entry. A cut JSON or
// proto record could never be decoded, so it is dropped instead.
var errOversize = errors.New("backend: record exceeds message size")

// EntryWriter stores one entry per Write. *logstore.Store satisfies it.
type EntryWriter interface {
	Write(p []byte) (int, error)
	Ready() bool
	MaxEntrySize() int
}

// Backend is not safe for concurrent use.
type Backend struct {
	w       EntryWriter
	format  record.Format
	ser     record.Serializer
	seq     *record.Sequencer
	now     func() time.Time
	logger  zerolog.Logger
	scratch []byte
}

type Option func(*Backend)

func WithFormat(f record.Format) Option {
	return func(b *Backend) {
		if s, err := record.For(f); err == nil {
			b.format, b.ser = f, s
		}
	}
}

// WithMaxMessageSize sets the scratch buffer size.
func WithMaxMessageSize(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.scratch = make([]byte, 0, n)
		}
	}
}

func WithSequencer(s *record.Sequencer) Option {
	return func(b *Backend) { b.seq = s }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

func New(w EntryWriter, opts ...Option) *Backend {
	b := &Backend{
		w:       w,
		format:  record.FormatText,
		ser:     record.TextSerializer{},
		seq:     record.NewSequencer(0),
		now:     time.Now,
		logger:  zerolog.Nop(),
		scratch: make([]byte, 0, DefaultMaxMessageSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process encodes rec and stores it. A zero Seq or Time is filled in. Text
// output longer than the message limit is cut, never split. JSON and proto
// output that does not fit is dropped and a dropped notice is stored in its
// place.
func (b *Backend) Process(rec *record.Record) error {
	err := b.process(rec)
	if !errors.Is(err, errOversize) {
		return err
	}
	oversizeTotal.Inc()
	b.logger.Debug().Uint64("seq", rec.Seq).Stringer("format", b.format).Msg("oversize record dropped")
	return b.Dropped(1)
}

// Dropped records that n messages were lost before reaching the backend.
// The notice itself is skipped when even it does not fit.
func (b *Backend) Dropped(n uint32) error {
	droppedTotal.Add(float64(n))
	err := b.process(&record.Record{
		Level:   record.LevelNone,
		Message: "--- " + strconv.FormatUint(uint64(n), 10) + " messages dropped ---",
	})
	if errors.Is(err, errOversize) {
		return nil
	}
	return err
}

func (b *Backend) process(rec *record.Record) error {
	if rec.Seq == 0 {
		rec.Seq = b.seq.Next()
	}
	if rec.Time == 0 {
		rec.Time = b.now().UnixNano()
	}

	out, err := b.ser.Append(b.scratch[:0], rec)
	if err != nil {
		return errors.Wrapf(err, "encode record %d", rec.Seq)
	}
	if b.format != record.FormatText && len(out) > b.limit() {
		return errOversize
	}
	_, err = b.write(out)
	return err
}

// SetFormat switches the serializer for subsequent records.
func (b *Backend) SetFormat(f record.Format) error {
	s, err := record.For(f)
	if err != nil {
		return err
	}
	b.format, b.ser = f, s
	b.logger.Debug().Stringer("format", f).Msg("backend format changed")
	return nil
}

func (b *Backend) Format() record.Format {
	return b.format
}

func (b *Backend) Ready() bool {
	return b.w.Ready()
}

// Sequencer exposes the sequence source, e.g. to reset it after restart.
func (b *Backend) Sequencer() *record.Sequencer {
	return b.seq
}

// RawWriter stores each Write as one entry without encoding, cut to the
// message limit. It suits line-oriented producers such as zerolog.
func (b *Backend) RawWriter() io.Writer {
	return rawWriter{b}
}

type rawWriter struct {
	b *Backend
}

func (r rawWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := r.b.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// limit is the longest entry the backend stores.
func (b *Backend) limit() int {
	limit := cap(b.scratch)
	if m := b.w.MaxEntrySize(); m > 0 && m < limit {
		limit = m
	}
	return limit
}

func (b *Backend) write(p []byte) (int, error) {
	if limit := b.limit(); len(p) > limit {
		truncatedTotal.Inc()
		p = p[:limit]
	}
	return b.w.Write(p)
}
