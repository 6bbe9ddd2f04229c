package logentry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsTrailingNewline(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("hello\r\n"))
	assert.Equal(t, "hello", Sanitize("hello\n"))
}

func TestSanitizeScrubsControlBytes(t *testing.T) {
	assert.Equal(t, "a?b", Sanitize("a\x01b"))
	assert.Equal(t, "tab\there", Sanitize("tab\there"))
}

func TestSanitizeExactly1024BytesUnchanged(t *testing.T) {
	msg := strings.Repeat("x", MaxMessageBytes)
	require.Len(t, msg, MaxMessageBytes)
	assert.Equal(t, msg, Sanitize(msg))
}

func TestSanitizeTruncatesOverLengthWithEllipsis(t *testing.T) {
	msg := strings.Repeat("x", MaxMessageBytes+1)
	got := Sanitize(msg)
	require.Len(t, got, MaxMessageBytes)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("x", MaxMessageBytes-3)+"...", got)
}

func TestFormatRendersBracketedTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	e := New("hello", ts)
	assert.Equal(t, "[2024-01-02 03:04:05] hello", e.Format())
}
