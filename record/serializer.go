package record

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// ErrCorruptRecord is returned when an entry cannot be decoded.
var ErrCorruptRecord = errors.New("record: corrupted record")

// corruptError keeps the decoder's cause while matching ErrCorruptRecord.
type corruptError struct{ cause error }

func (e *corruptError) Error() string { return e.cause.Error() }

func (e *corruptError) Unwrap() error { return e.cause }

func (e *corruptError) Is(target error) bool { return target == ErrCorruptRecord }

func corrupt(err error) error {
	return &corruptError{cause: err}
}

// Serializer turns records into entry payloads and back.
type Serializer interface {
	// Append encodes rec onto dst and returns the extended slice.
	Append(dst []byte, rec *Record) ([]byte, error)
	Decode(b []byte) (*Record, error)
}

// Encode is Append onto a fresh buffer.
func Encode(s Serializer, rec *Record) ([]byte, error) {
	return s.Append(nil, rec)
}

// Format selects a Serializer at runtime.
type Format uint8

const (
	FormatText Format = iota
	FormatJSON
	FormatProto
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatProto:
		return "proto"
	}
	return "format(" + strconv.Itoa(int(f)) + ")"
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "proto", "protobuf":
		return FormatProto, nil
	}
	return FormatText, errors.Newf("record: unknown format %q", s)
}

// For returns the serializer of f.
func For(f Format) (Serializer, error) {
	switch f {
	case FormatText:
		return TextSerializer{}, nil
	case FormatJSON:
		return JSONSerializer{}, nil
	case FormatProto:
		return ProtoSerializer{}, nil
	}
	return nil, errors.Newf("record: unsupported format %d", f)
}

// TextSerializer writes one human readable line per record:
//
//	[00000042] 2026-01-02T15:04:05.000000000Z <inf> source: message
type TextSerializer struct{}

const textTime = "2006-01-02T15:04:05.000000000Z07:00"

func (TextSerializer) Append(dst []byte, rec *Record) ([]byte, error) {
	dst = append(dst, '[')
	dst = appendPadded(dst, rec.Seq)
	dst = append(dst, "] "...)
	dst = time.Unix(0, rec.Time).UTC().AppendFormat(dst, textTime)
	dst = append(dst, " <"...)
	dst = append(dst, rec.Level.String()...)
	dst = append(dst, "> "...)
	if rec.Source != "" {
		dst = append(dst, rec.Source...)
		dst = append(dst, ": "...)
	}
	dst = append(dst, rec.Message...)
	return append(dst, '\n'), nil
}

func appendPadded(dst []byte, v uint64) []byte {
	var tmp [20]byte
	s := strconv.AppendUint(tmp[:0], v, 10)
	for i := len(s); i < 8; i++ {
		dst = append(dst, '0')
	}
	return append(dst, s...)
}

// Decode parses a line written by Append. A source is only recognized when
// it contains no spaces.
func (TextSerializer) Decode(b []byte) (*Record, error) {
	line := string(bytes.TrimSuffix(b, []byte{'\n'}))
	if !strings.HasPrefix(line, "[") {
		return nil, ErrCorruptRecord
	}
	seqStr, rest, ok := strings.Cut(line[1:], "] ")
	if !ok {
		return nil, ErrCorruptRecord
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return nil, corrupt(errors.Wrap(err, "seq"))
	}
	tsStr, rest, ok := strings.Cut(rest, " <")
	if !ok {
		return nil, ErrCorruptRecord
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return nil, corrupt(errors.Wrap(err, "timestamp"))
	}
	lvlStr, msg, ok := strings.Cut(rest, "> ")
	if !ok {
		return nil, ErrCorruptRecord
	}
	lvl, err := ParseLevel(lvlStr)
	if err != nil {
		return nil, corrupt(err)
	}

	rec := &Record{Seq: seq, Time: ts.UnixNano(), Level: lvl, Message: msg}
	if src, m, ok := strings.Cut(msg, ": "); ok && src != "" && !strings.ContainsRune(src, ' ') {
		rec.Source, rec.Message = src, m
	}
	return rec, nil
}

// JSONSerializer writes one JSON object per record, newline terminated.
type JSONSerializer struct{}

func (JSONSerializer) Append(dst []byte, rec *Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return dst, errors.Wrap(err, "record: marshal json")
	}
	dst = append(dst, b...)
	return append(dst, '\n'), nil
}

func (JSONSerializer) Decode(b []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(bytes.TrimSpace(b), &rec); err != nil {
		return nil, corrupt(errors.Wrap(err, "record: unmarshal json"))
	}
	return &rec, nil
}
