// Package record encodes log messages into flash entries.
package record

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Level is the severity of a record. Lower values are more severe; None
// marks records that carry no severity, such as drop notices.
type Level uint8

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{
	LevelNone:  "none",
	LevelError: "err",
	LevelWarn:  "wrn",
	LevelInfo:  "inf",
	LevelDebug: "dbg",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "lvl(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel accepts the short names printed by String as well as the
// long forms error, warn, warning, info and debug.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LevelNone, nil
	case "err", "error":
		return LevelError, nil
	case "wrn", "warn", "warning":
		return LevelWarn, nil
	case "inf", "info":
		return LevelInfo, nil
	case "dbg", "debug":
		return LevelDebug, nil
	}
	return LevelNone, errors.Newf("record: unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Record is one log message.
type Record struct {
	Seq     uint64 `json:"seq"`
	Time    int64  `json:"ts"` // unix nanoseconds
	Level   Level  `json:"level"`
	Source  string `json:"source,omitempty"`
	Message string `json:"msg"`
}
