package backend

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/infra/flash"
	"flashlog/logstore"
	"flashlog/record"
)

type captureWriter struct {
	entries [][]byte
	limit   int
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.entries = append(c.entries, append([]byte(nil), p...))
	return len(p), nil
}

func (c *captureWriter) Ready() bool       { return true }
func (c *captureWriter) MaxEntrySize() int { return c.limit }

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
}

func TestBackend_ProcessStampsRecords(t *testing.T) {
	w := &captureWriter{}
	b := New(w, WithClock(fixedClock), WithSequencer(record.NewSequencer(99)))

	require.NoError(t, b.Process(&record.Record{Level: record.LevelInfo, Source: "app", Message: "boot"}))
	require.NoError(t, b.Process(&record.Record{Level: record.LevelError, Message: "oops"}))

	require.Len(t, w.entries, 2)
	assert.Equal(t, "[00000100] 2026-03-01T08:00:00.000000000Z <inf> app: boot\n", string(w.entries[0]))
	assert.Contains(t, string(w.entries[1]), "[00000101]")
	assert.Equal(t, uint64(101), b.Sequencer().Current())
}

func TestBackend_TruncatesOversize(t *testing.T) {
	w := &captureWriter{}
	b := New(w, WithMaxMessageSize(16))
	require.NoError(t, b.Process(&record.Record{Message: "this message is far too long"}))
	require.Len(t, w.entries, 1)
	assert.Len(t, w.entries[0], 16)

	w.limit = 8
	_, err := b.RawWriter().Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "01234567", string(w.entries[1]))
}

func TestBackend_DropsOversizeFramedRecords(t *testing.T) {
	for _, f := range []record.Format{record.FormatJSON, record.FormatProto} {
		t.Run(f.String(), func(t *testing.T) {
			w := &captureWriter{}
			b := New(w, WithFormat(f), WithMaxMessageSize(128), WithClock(fixedClock))
			long := string(make([]byte, 200))
			require.NoError(t, b.Process(&record.Record{Level: record.LevelInfo, Message: long}))

			require.Len(t, w.entries, 1)
			ser, err := record.For(f)
			require.NoError(t, err)
			rec, err := ser.Decode(w.entries[0])
			require.NoError(t, err)
			assert.Equal(t, "--- 1 messages dropped ---", rec.Message)
			assert.Equal(t, uint64(2), rec.Seq)
		})
	}

	// not even the notice fits
	w := &captureWriter{}
	b := New(w, WithFormat(record.FormatJSON), WithMaxMessageSize(16))
	require.NoError(t, b.Process(&record.Record{Message: "anything"}))
	assert.Empty(t, w.entries)
}

func TestBackend_Dropped(t *testing.T) {
	w := &captureWriter{}
	b := New(w, WithClock(fixedClock))
	require.NoError(t, b.Dropped(12))

	rec, err := record.TextSerializer{}.Decode(w.entries[0])
	require.NoError(t, err)
	assert.Equal(t, record.LevelNone, rec.Level)
	assert.Equal(t, "--- 12 messages dropped ---", rec.Message)
}

func TestBackend_SetFormat(t *testing.T) {
	w := &captureWriter{}
	b := New(w, WithClock(fixedClock))
	require.NoError(t, b.SetFormat(record.FormatJSON))
	assert.Equal(t, record.FormatJSON, b.Format())
	require.NoError(t, b.Process(&record.Record{Level: record.LevelDebug, Message: "json"}))

	rec, err := record.JSONSerializer{}.Decode(w.entries[0])
	require.NoError(t, err)
	assert.Equal(t, "json", rec.Message)
	assert.Equal(t, fixedClock().UnixNano(), rec.Time)

	assert.Error(t, b.SetFormat(record.Format(42)))
	assert.Equal(t, record.FormatJSON, b.Format())
}

func TestBackend_OverStore(t *testing.T) {
	mem, err := flash.NewMem(4*256, 256)
	require.NoError(t, err)
	store := logstore.New(mem, logstore.DefaultConfig())
	b := New(store, WithFormat(record.FormatProto))

	err = b.Process(&record.Record{Message: "early"})
	assert.ErrorIs(t, err, logstore.ErrNotReady)
	assert.False(t, b.Ready())

	require.NoError(t, store.Init())
	require.NoError(t, b.Process(&record.Record{Level: record.LevelWarn, Message: "stored"}))

	logger := zerolog.New(b.RawWriter())
	logger.Info().Str("k", "v").Msg("teed")

	var (
		cur  logstore.Cursor
		got  [][]byte
		each = make([]byte, 256)
	)
	for {
		// a buffer just big enough for one entry keeps entries apart
		n, err := store.Read(each[:1], &cur)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		entry := append([]byte(nil), each[:n]...)
		for cur.Splitting() {
			n, err = store.Read(each[:1], &cur)
			require.NoError(t, err)
			entry = append(entry, each[:n]...)
		}
		got = append(got, entry)
		if cur.IsZero() {
			break
		}
	}
	require.Len(t, got, 2)

	rec, err := record.ProtoSerializer{}.Decode(got[0])
	require.NoError(t, err)
	assert.Equal(t, "stored", rec.Message)
	assert.Contains(t, string(got[1]), `"message":"teed"`)
}
