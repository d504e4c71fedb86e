package exporter

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/backend"
	"flashlog/infra/checkpoint"
	"flashlog/infra/flash"
	"flashlog/logstore"
	"flashlog/service"
)

type fakeSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	keys   []string
	failAt int // fail the n-th send, 1-based; 0 never
	sends  int
}

func (f *fakeSink) Send(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.sends == f.failAt {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, string(key))
	f.buf.Write(value)
	return nil
}

func (f *fakeSink) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func setup(t *testing.T) (*service.LogService, *checkpoint.Store) {
	t.Helper()
	mem, err := flash.NewMem(4*512, 512)
	require.NoError(t, err)
	store := logstore.New(mem, logstore.DefaultConfig())
	svc := service.NewLogService(store, backend.New(store), zerolog.Nop())
	require.NoError(t, svc.Init())

	ck, err := checkpoint.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ck.Close() })
	return svc, ck
}

func write(t *testing.T, svc *service.LogService, entries ...string) {
	t.Helper()
	for _, e := range entries {
		_, err := svc.WriteRaw([]byte(e))
		require.NoError(t, err)
	}
}

func TestExporter_ShipsOnlyNewEntries(t *testing.T) {
	svc, ck := setup(t)
	sink := &fakeSink{}
	exp := New(svc, ck, sink, Config{Consumer: "edge-1", ChunkSize: 8}, zerolog.Nop())

	write(t, svc, "first;", "second;")
	n, err := exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	n, err = exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	write(t, svc, "third;")
	_, err = exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first;second;third;", sink.String())
	assert.Equal(t, "edge-1", sink.keys[0])

	cp, ok, err := ck.Load("edge-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(19), cp.Shipped)
}

func TestExporter_ResumesAfterSinkFailure(t *testing.T) {
	svc, ck := setup(t)
	sink := &fakeSink{failAt: 2}
	exp := New(svc, ck, sink, Config{Consumer: "c", ChunkSize: 4}, zerolog.Nop())

	write(t, svc, "aaaa", "bbbb", "cccc")
	n, err := exp.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, n)

	_, err = exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbbcccc", sink.String())
}

func TestExporter_Run(t *testing.T) {
	svc, ck := setup(t)
	sink := &fakeSink{}
	exp := New(svc, ck, sink, Config{Interval: 5 * time.Millisecond}, zerolog.Nop())
	write(t, svc, "tick")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exp.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.String() == "tick" }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	_, ok, err := ck.Load("default")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExporter_EraseDoesNotSkipNewEntries(t *testing.T) {
	svc, ck := setup(t)
	sink := &fakeSink{}
	exp := New(svc, ck, sink, Config{Consumer: "c", ChunkSize: 64}, zerolog.Nop())

	write(t, svc, "old-1;", "old-2;", "old-3;")
	_, err := exp.RunOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Erase())
	write(t, svc, "new-1;", "new-2;", "new-3;", "new-4;")
	_, err = exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old-1;old-2;old-3;new-1;new-2;new-3;new-4;", sink.String())
}

func TestExporter_RejectedCheckpointRestartsAtOldest(t *testing.T) {
	mem, err := flash.NewMem(4*512, 512)
	require.NoError(t, err)
	store := logstore.New(mem, logstore.DefaultConfig())
	svc := service.NewLogService(store, backend.New(store), zerolog.Nop())
	require.NoError(t, svc.Init())
	ck, err := checkpoint.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ck.Close() })

	write(t, svc, "abcdefghijkl")
	var cur logstore.Cursor
	_, err = store.Read(make([]byte, 10), &cur)
	require.NoError(t, err)
	require.True(t, cur.Splitting())
	_, err = ck.Save("c", cur, 10)
	require.NoError(t, err)

	// wiped behind the store's back: ids restart and the saved split
	// offset lands outside the new first entry
	require.NoError(t, mem.Erase(0, mem.Size()))
	require.NoError(t, svc.Init())
	write(t, svc, "ab")

	sink := &fakeSink{}
	exp := New(svc, ck, sink, Config{Consumer: "c", ChunkSize: 64}, zerolog.Nop())
	n, err := exp.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", sink.String())
}
