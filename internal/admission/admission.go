// Package admission implements the shared max_clients gate that
// bounds the combined count of active ingest and query sessions per
// spec.md §5.
package admission

import "sync/atomic"

// Counter is a shared admission gate. TryAcquire/Release are safe for
// concurrent use from both the ingest and query accept loops.
type Counter struct {
	max int64
	cur atomic.Int64
}

// NewCounter builds a gate that admits at most max concurrent
// sessions.
func NewCounter(max int) *Counter {
	return &Counter{max: int64(max)}
}

// TryAcquire reports whether a new session may be admitted, claiming
// a slot if so.
func (c *Counter) TryAcquire() bool {
	for {
		cur := c.cur.Load()
		if cur >= c.max {
			return false
		}
		if c.cur.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release frees a previously acquired slot.
func (c *Counter) Release() {
	c.cur.Add(-1)
}

// InUse returns the current number of admitted sessions.
func (c *Counter) InUse() int64 {
	return c.cur.Load()
}
