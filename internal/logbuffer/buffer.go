// Package logbuffer implements LogCrafter's bounded, thread-safe circular
// store of recent log entries: Component A of the ingest/query core.
//
// The structure mirrors the original C implementation's ring buffer
// (log_buffer_create/push/search) but trades the hand-rolled mutex/condvar
// pair for a single sync.Mutex guarding a slice-backed ring, in the spirit
// of the teacher's storage.AtomicWriter: one owning type, no raw handles
// to the lock leak out.
package logbuffer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seungwoo7050/logcrafter/pkg/logentry"
)

// Matcher decides whether an entry satisfies a query. query.Request
// (internal/query) implements this without logbuffer importing that
// package, so Execute can accept any predicate over (message, timestamp).
type Matcher interface {
	Match(message string, timestamp time.Time) bool
}

// Stats is a point-in-time snapshot of the buffer's counters.
type Stats struct {
	Size         int
	TotalLogs    uint64
	DroppedLogs  uint64
}

// Buffer is a fixed-capacity, drop-oldest ring of normalized log entries.
// All public methods are safe for concurrent use.
type Buffer struct {
	mu sync.Mutex

	entries  []logentry.Entry
	capacity int
	head     int // next write position
	size     int

	totalLogs   uint64
	droppedLogs uint64
}

// New allocates a buffer of the given capacity. capacity must be > 0.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("logbuffer: capacity must be > 0, got %d", capacity)
	}
	return &Buffer{
		entries:  make([]logentry.Entry, capacity),
		capacity: capacity,
	}, nil
}

// Push normalizes message and stores it at the given timestamp. When the
// buffer is already at capacity the oldest live entry is overwritten and
// DroppedLogs is incremented exactly once.
func (b *Buffer) Push(message string, timestamp time.Time) error {
	entry := logentry.New(message, timestamp)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == b.capacity {
		b.droppedLogs++
	} else {
		b.size++
	}
	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	b.totalLogs++

	return nil
}

// PushNow is a convenience wrapper equal to Push(message, time.Now()).
func (b *Buffer) PushNow(message string) error {
	return b.Push(message, time.Now())
}

// Count returns the current number of live entries.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stats returns a snapshot of the buffer's counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Size: b.size, TotalLogs: b.totalLogs, DroppedLogs: b.droppedLogs}
}

// oldestIndex returns the ring index of the oldest live entry. Caller must
// hold b.mu.
func (b *Buffer) oldestIndex() int {
	return (b.head - b.size + b.capacity) % b.capacity
}

// Snapshot returns a copy of all live messages, oldest first.
func (b *Buffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, b.size)
	idx := b.oldestIndex()
	for i := 0; i < b.size; i++ {
		out = append(out, b.entries[idx].Message)
		idx = (idx + 1) % b.capacity
	}
	return out
}

// SearchKeyword returns formatted entries ("[ts] message") whose message
// contains kw as a substring, oldest first.
func (b *Buffer) SearchKeyword(kw string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	idx := b.oldestIndex()
	for i := 0; i < b.size; i++ {
		e := b.entries[idx]
		if strings.Contains(e.Message, kw) {
			out = append(out, e.Format())
		}
		idx = (idx + 1) % b.capacity
	}
	return out
}

// Execute returns formatted entries ("[ts] message"), oldest first, that
// satisfy every predicate encoded in m. The lock is held only for the
// in-memory walk and string formatting; callers receive owned copies.
func (b *Buffer) Execute(m Matcher) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	idx := b.oldestIndex()
	for i := 0; i < b.size; i++ {
		e := b.entries[idx]
		if m.Match(e.Message, e.Timestamp) {
			out = append(out, e.Format())
		}
		idx = (idx + 1) % b.capacity
	}
	return out
}
