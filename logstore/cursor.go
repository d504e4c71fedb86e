package logstore

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"

	"flashlog/infra/fcb"
)

// TokenSize is the width of a serialized Cursor: two 64-bit words.
const TokenSize = 16

// Token is the fixed-size, opaque wire form of a Cursor.
type Token [TokenSize]byte

// Cursor records how far an export has progressed: the last entry visited
// and, while an entry is being split across calls, the absolute flash offset
// of its next unread byte. It is a plain value and may be copied freely.
type Cursor struct {
	pos   fcb.Position
	split uint32
}

// IsZero reports whether c is the start-of-log (and end-of-log) cursor.
func (c Cursor) IsZero() bool {
	return c == Cursor{}
}

// Splitting reports whether the export stopped inside an entry.
func (c Cursor) Splitting() bool {
	return c.split != 0
}

// Token layout, little endian:
//
//	[0:2] sector index  [2:4] sector id  [4:8] entry offset
//	[8:12] split offset [12:16] reserved, zero
func (c Cursor) Token() Token {
	var t Token
	binary.LittleEndian.PutUint16(t[0:2], c.pos.Sector)
	binary.LittleEndian.PutUint16(t[2:4], c.pos.ID)
	binary.LittleEndian.PutUint32(t[4:8], c.pos.Offset)
	binary.LittleEndian.PutUint32(t[8:12], c.split)
	return t
}

// ParseToken decodes a token produced by Cursor.Token.
func ParseToken(t Token) (Cursor, error) {
	if binary.LittleEndian.Uint32(t[12:16]) != 0 {
		return Cursor{}, errors.Wrap(ErrInvalidArgument, "cursor token: reserved bytes set")
	}
	c := Cursor{
		pos: fcb.Position{
			Sector: binary.LittleEndian.Uint16(t[0:2]),
			ID:     binary.LittleEndian.Uint16(t[2:4]),
			Offset: binary.LittleEndian.Uint32(t[4:8]),
		},
		split: binary.LittleEndian.Uint32(t[8:12]),
	}
	if c.split != 0 && c.pos.IsZero() {
		return Cursor{}, errors.Wrap(ErrInvalidArgument, "cursor token: split without position")
	}
	return c, nil
}

func (c Cursor) MarshalBinary() ([]byte, error) {
	t := c.Token()
	return t[:], nil
}

func (c *Cursor) UnmarshalBinary(b []byte) error {
	if len(b) != TokenSize {
		return errors.Wrapf(ErrInvalidArgument, "cursor token: %d bytes, want %d", len(b), TokenSize)
	}
	parsed, err := ParseToken(Token(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "cursor(start)"
	}
	return fmt.Sprintf("cursor(sector=%d id=%d off=%d split=%d)", c.pos.Sector, c.pos.ID, c.pos.Offset, c.split)
}
