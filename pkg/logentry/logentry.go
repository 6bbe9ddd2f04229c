// Package logentry defines the log record type shared by every LogCrafter
// component: the buffer, the persistence writer, the query evaluator and
// the IRC fan-out all operate on the same normalized shape.
package logentry

import (
	"fmt"
	"strings"
	"time"
)

// MaxMessageBytes is the maximum size of a stored message after
// normalization. Longer input is truncated and marked with a trailing
// ellipsis.
const MaxMessageBytes = 1024

// TimeLayout is the on-disk and wire timestamp format, always rendered in
// local time: "YYYY-MM-DD HH:MM:SS".
const TimeLayout = "2006-01-02 15:04:05"

// Entry is a single normalized log record: an absolute wall-clock second
// and a bounded, scrubbed message.
type Entry struct {
	Timestamp time.Time
	Message   string
}

// Sanitize normalizes raw input into a message that is safe to store,
// persist and broadcast: trailing CR/LF is stripped, every byte that is
// neither printable ASCII, space nor tab becomes '?', and the result is
// capped at MaxMessageBytes with the last three bytes replaced by "..."
// when truncation occurs. It is the single place this normalization
// happens, invoked on every inbound line and every replayed line.
func Sanitize(raw string) string {
	raw = strings.TrimRight(raw, "\r\n")

	b := []byte(raw)
	for i, c := range b {
		if c == ' ' || c == '\t' || (c >= 0x20 && c < 0x7f) {
			continue
		}
		b[i] = '?'
	}

	if len(b) <= MaxMessageBytes {
		return string(b)
	}

	truncated := make([]byte, MaxMessageBytes)
	copy(truncated, b[:MaxMessageBytes-3])
	copy(truncated[MaxMessageBytes-3:], "...")
	return string(truncated)
}

// New builds a normalized Entry from raw input and a timestamp.
func New(raw string, ts time.Time) Entry {
	return Entry{Timestamp: ts, Message: Sanitize(raw)}
}

// Format renders the entry the way it is persisted to disk and returned
// by QUERY/!query: "[YYYY-MM-DD HH:MM:SS] <message>".
func (e Entry) Format() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp.Local().Format(TimeLayout), e.Message)
}
