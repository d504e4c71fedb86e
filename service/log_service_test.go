package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/backend"
	"flashlog/infra/flash"
	"flashlog/logstore"
	"flashlog/record"
)

func newService(t *testing.T, sectors int) *LogService {
	t.Helper()
	mem, err := flash.NewMem(uint32(sectors*512), 512)
	require.NoError(t, err)
	store := logstore.New(mem, logstore.DefaultConfig())
	svc := NewLogService(store, backend.New(store), zerolog.Nop())
	require.NoError(t, svc.Init())
	return svc
}

func collect(t *testing.T, svc *LogService, from logstore.Cursor, chunk int) (string, logstore.Cursor) {
	t.Helper()
	var out bytes.Buffer
	next, err := svc.Drain(context.Background(), from, chunk, func(p []byte, _ logstore.Cursor) error {
		out.Write(p)
		return nil
	})
	require.NoError(t, err)
	return out.String(), next
}

func TestLogService_LogAndDrain(t *testing.T) {
	svc := newService(t, 4)
	seq, err := svc.Log(record.LevelInfo, "svc", "hello")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	_, err = svc.WriteRaw([]byte("raw\n"))
	require.NoError(t, err)

	out, mark := collect(t, svc, logstore.Cursor{}, 7)
	assert.Contains(t, out, "<inf> svc: hello\n")
	assert.True(t, strings.HasSuffix(out, "raw\n"))

	again, _ := collect(t, svc, mark, 64)
	assert.Empty(t, again)

	_, err = svc.WriteRaw([]byte("later"))
	require.NoError(t, err)
	tail, _ := collect(t, svc, mark, 64)
	assert.Equal(t, "later", tail)
}

func TestLogService_DrainStopsAtRejectedChunk(t *testing.T) {
	svc := newService(t, 4)
	for _, p := range []string{"one", "two", "three"} {
		_, err := svc.WriteRaw([]byte(p))
		require.NoError(t, err)
	}

	calls := 0
	mark, err := svc.Drain(context.Background(), logstore.Cursor{}, 3, func(p []byte, _ logstore.Cursor) error {
		calls++
		if calls == 2 {
			return errors.New("sink down")
		}
		return nil
	})
	require.Error(t, err)

	// the rejected chunk is delivered again on the next drain
	out, _ := collect(t, svc, mark, 64)
	assert.Equal(t, "twothree", out)
}

func TestLogService_DrainHonorsContext(t *testing.T) {
	svc := newService(t, 2)
	_, err := svc.WriteRaw([]byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mark, err := svc.Drain(ctx, logstore.Cursor{}, 16, func([]byte, logstore.Cursor) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, mark.IsZero())

	_, err = svc.Drain(context.Background(), logstore.Cursor{}, 0, nil)
	assert.ErrorIs(t, err, logstore.ErrInvalidArgument)
}

func TestLogService_ReadChunkTokens(t *testing.T) {
	svc := newService(t, 2)
	_, err := svc.WriteRaw([]byte("abcdef"))
	require.NoError(t, err)

	var (
		tok logstore.Token
		out []byte
	)
	buf := make([]byte, 4)
	for i := 0; i < 10; i++ {
		n, next, err := svc.ReadChunk(buf, tok)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		tok = next
		if tok == (logstore.Token{}) {
			break
		}
	}
	assert.Equal(t, "abcdef", string(out))

	var bad logstore.Token
	bad[13] = 1
	_, _, err = svc.ReadChunk(buf, bad)
	assert.ErrorIs(t, err, logstore.ErrInvalidArgument)
}

func TestLogService_ConcurrentWritersAndDrain(t *testing.T) {
	svc := newService(t, 8)
	logger := zerolog.New(svc.RawWriter())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if g%2 == 0 {
					logger.Info().Int("g", g).Int("i", i).Msg("tee")
				} else {
					_, _ = svc.Log(record.LevelDebug, "worker", "tick")
				}
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.Drain(context.Background(), logstore.Cursor{}, 128, func([]byte, logstore.Cursor) error { return nil })
	}()
	wg.Wait()

	st := svc.Status()
	assert.True(t, st.Ready)
	assert.Greater(t, st.Stats.UsedSectors, 0)
}

func TestLogService_EraseAndStatus(t *testing.T) {
	svc := newService(t, 2)
	_, err := svc.Log(record.LevelError, "", "before erase")
	require.NoError(t, err)
	require.NoError(t, svc.SetFormat(record.FormatJSON))
	require.NoError(t, svc.Dropped(2))

	require.NoError(t, svc.Erase())
	out, _ := collect(t, svc, logstore.Cursor{}, 64)
	assert.Empty(t, out)

	st := svc.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, record.FormatJSON, st.Format)
	assert.Equal(t, 2, st.Stats.Sectors)
}

func TestLogService_RecoverSequence(t *testing.T) {
	mem, err := flash.NewMem(4*512, 512)
	require.NoError(t, err)
	store := logstore.New(mem, logstore.DefaultConfig())
	svc := NewLogService(store, backend.New(store), zerolog.Nop())
	require.NoError(t, svc.Init())
	for i := 0; i < 5; i++ {
		_, err := svc.Log(record.LevelInfo, "boot", "step")
		require.NoError(t, err)
	}
	_, err = svc.WriteRaw([]byte("not a record"))
	require.NoError(t, err)

	// a restarted process starts numbering from zero
	store = logstore.New(mem, logstore.DefaultConfig())
	svc = NewLogService(store, backend.New(store), zerolog.Nop())
	require.NoError(t, svc.Init())
	last, err := svc.RecoverSequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), last)

	seq, err := svc.Log(record.LevelInfo, "boot", "again")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), seq)
}
