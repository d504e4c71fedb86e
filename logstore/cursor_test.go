package logstore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/infra/fcb"
)

func TestCursor_TokenRoundTrip(t *testing.T) {
	c := Cursor{
		pos:   fcb.Position{Sector: 3, ID: 0xBEEF, Offset: 120},
		split: 0x0304,
	}
	tok := c.Token()
	assert.Len(t, tok, TokenSize)
	assert.Equal(t, []byte{0, 0, 0, 0}, tok[12:16])

	got, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	b, err := c.MarshalBinary()
	require.NoError(t, err)
	var back Cursor
	require.NoError(t, back.UnmarshalBinary(b))
	assert.Equal(t, c, back)

	zero, err := ParseToken(Token{})
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, "cursor(start)", zero.String())
}

func TestCursor_InvalidTokens(t *testing.T) {
	var reserved Token
	reserved[15] = 1
	_, err := ParseToken(reserved)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var orphan Token
	orphan[8] = 9
	_, err = ParseToken(orphan)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var c Cursor
	assert.ErrorIs(t, c.UnmarshalBinary([]byte{1, 2, 3}), ErrInvalidArgument)
}

func TestCursor_ResumeFromToken(t *testing.T) {
	_, s := newStore(t, 4)
	for _, p := range []string{"first entry", "second entry", "third"} {
		_, err := s.Write([]byte(p))
		require.NoError(t, err)
	}

	var cur Cursor
	buf := make([]byte, 5)
	n, err := s.Read(buf, &cur)
	require.NoError(t, err)
	require.Equal(t, "first", string(buf[:n]))

	// persist and reload the cursor as a caller across restarts would
	restored, err := ParseToken(cur.Token())
	require.NoError(t, err)

	var out []byte
	big := make([]byte, 64)
	for {
		n, err := s.Read(big, &restored)
		require.NoError(t, err)
		out = append(out, big[:n]...)
		if restored.IsZero() {
			break
		}
	}
	assert.Equal(t, " entrysecond entrythird", string(out))
}

func TestCursor_CorruptSplitRejected(t *testing.T) {
	_, s := newStore(t, 2)
	_, err := s.Write([]byte("0123456789"))
	require.NoError(t, err)

	var cur Cursor
	_, err = s.Read(make([]byte, 4), &cur)
	require.NoError(t, err)
	require.True(t, cur.Splitting())

	bad := cur
	bad.split = 0xFFFF
	_, err = s.Read(make([]byte, 4), &bad)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bad = cur
	bad.pos.Offset = 2
	_, err = s.Read(make([]byte, 4), &bad)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExport_CheckpointResume(t *testing.T) {
	_, s := newStore(t, 4)
	for _, p := range []string{"a1", "a2"} {
		_, err := s.Write([]byte(p))
		require.NoError(t, err)
	}

	e := s.NewExport(Cursor{})
	buf := make([]byte, 64)
	n, err := e.Next(buf)
	require.NoError(t, err)
	assert.Equal(t, "a1a2", string(buf[:n]))
	_, err = e.Next(buf)
	require.ErrorIs(t, err, io.EOF)

	mark := e.Checkpoint()
	assert.False(t, mark.IsZero())

	for _, p := range []string{"b1", "b2"} {
		_, err := s.Write([]byte(p))
		require.NoError(t, err)
	}

	next := s.NewExport(mark)
	n, err = next.Next(buf)
	require.NoError(t, err)
	assert.Equal(t, "b1b2", string(buf[:n]))
	assert.True(t, next.Done())

	// nothing new: the resumed export ends immediately
	idle := s.NewExport(next.Checkpoint())
	n, err = idle.Next(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, idle.Done())
}

func TestExport_ErrorIsRetryable(t *testing.T) {
	_, s := newStore(t, 2)
	e := s.NewExport(Cursor{})
	_, err := e.Next(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, e.Done())

	_, err = s.Write([]byte("x"))
	require.NoError(t, err)
	n, err := e.Next(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestErrno(t *testing.T) {
	assert.Equal(t, 0, Errno(nil))
	assert.Equal(t, -19, Errno(ErrNotReady))
	assert.Equal(t, -12, Errno(ErrOutOfMemory))
	assert.Equal(t, -5, Errno(ErrIO))
	assert.Equal(t, -22, Errno(ErrInvalidArgument))
	assert.Equal(t, -5, Errno(markIO(io.ErrUnexpectedEOF, "read")))
}
