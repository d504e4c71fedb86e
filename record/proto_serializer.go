package record

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the record message.
const (
	fieldSeq     protowire.Number = 1
	fieldTime    protowire.Number = 2
	fieldLevel   protowire.Number = 3
	fieldSource  protowire.Number = 4
	fieldMessage protowire.Number = 5
)

const protoHeaderLen = 8

// ProtoSerializer writes records in protobuf wire format behind an 8 byte
// header: body length u32 LE, then CRC32 of the body u32 LE.
//
//	message Record {
//	  uint64 seq = 1;
//	  int64  time = 2;
//	  uint32 level = 3;
//	  string source = 4;
//	  string message = 5;
//	}
type ProtoSerializer struct{}

func (ProtoSerializer) Append(dst []byte, rec *Record) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, protoHeaderLen)...)
	body := len(dst)

	if rec.Seq != 0 {
		dst = protowire.AppendTag(dst, fieldSeq, protowire.VarintType)
		dst = protowire.AppendVarint(dst, rec.Seq)
	}
	if rec.Time != 0 {
		dst = protowire.AppendTag(dst, fieldTime, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(rec.Time))
	}
	if rec.Level != LevelNone {
		dst = protowire.AppendTag(dst, fieldLevel, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(rec.Level))
	}
	if rec.Source != "" {
		dst = protowire.AppendTag(dst, fieldSource, protowire.BytesType)
		dst = protowire.AppendString(dst, rec.Source)
	}
	if rec.Message != "" {
		dst = protowire.AppendTag(dst, fieldMessage, protowire.BytesType)
		dst = protowire.AppendString(dst, rec.Message)
	}

	binary.LittleEndian.PutUint32(dst[start:], uint32(len(dst)-body))
	binary.LittleEndian.PutUint32(dst[start+4:], crc32.ChecksumIEEE(dst[body:]))
	return dst, nil
}

func (ProtoSerializer) Decode(data []byte) (*Record, error) {
	if len(data) < protoHeaderLen {
		return nil, ErrCorruptRecord
	}
	n := binary.LittleEndian.Uint32(data[0:4])
	if uint64(n) != uint64(len(data)-protoHeaderLen) {
		return nil, errors.Wrapf(ErrCorruptRecord, "body length %d, have %d", n, len(data)-protoHeaderLen)
	}
	body := data[protoHeaderLen:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(data[4:8]) {
		return nil, errors.Wrap(ErrCorruptRecord, "checksum mismatch")
	}

	var rec Record
	for len(body) > 0 {
		num, typ, m := protowire.ConsumeTag(body)
		if m < 0 {
			return nil, corrupt(protowire.ParseError(m))
		}
		body = body[m:]

		switch {
		case typ == protowire.VarintType && (num == fieldSeq || num == fieldTime || num == fieldLevel):
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return nil, corrupt(protowire.ParseError(m))
			}
			body = body[m:]
			switch num {
			case fieldSeq:
				rec.Seq = v
			case fieldTime:
				rec.Time = int64(v)
			case fieldLevel:
				rec.Level = Level(v)
			}
		case typ == protowire.BytesType && (num == fieldSource || num == fieldMessage):
			v, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return nil, corrupt(protowire.ParseError(m))
			}
			body = body[m:]
			if num == fieldSource {
				rec.Source = string(v)
			} else {
				rec.Message = string(v)
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return nil, corrupt(protowire.ParseError(m))
			}
			body = body[m:]
		}
	}
	return &rec, nil
}
