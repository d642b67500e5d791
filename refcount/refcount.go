// Package refcount provides the low-level liveness counter the readmostly
// pointer is built on.
//
// A Count starts at 1 (the creator's reference) and supports three moves:
//   - Acquire: unconditional increment, legal only while the caller already
//     holds a reference that keeps the count above zero
//   - Release: decrement; the call that drives the count to zero is told so
//     and owns running the teardown
//   - TryAcquire: increment only if the count is still above zero, as one
//     atomic step; the only primitive allowed to observe death
package refcount

import (
	"sync/atomic"
)

// Count is an atomic liveness counter. The zero value is not usable; use New.
type Count struct {
	n atomic.Int64
}

// New returns a Count holding the creator's single reference.
func New() *Count {
	c := &Count{}
	c.n.Store(1)
	return c
}

// Acquire adds a reference. The caller must already hold one; acquiring a
// dead count is a bug and panics.
func (c *Count) Acquire() {
	if c.n.Add(1) <= 1 {
		panic("refcount: Acquire on a dead count")
	}
}

// Release drops a reference and reports whether this call drove the count to
// zero. Exactly one Release per Count returns true; that caller must run the
// teardown. Going below zero panics.
func (c *Count) Release() bool {
	n := c.n.Add(-1)
	if n < 0 {
		panic("refcount: count went negative")
	}
	return n == 0
}

// TryAcquire adds a reference only if the count is still above zero. The
// zero-check and the increment are one atomic step, so TryAcquire never
// revives a count a concurrent Release has already driven to zero.
func (c *Count) TryAcquire() bool {
	for {
		n := c.n.Load()
		if n == 0 {
			return false
		}
		if c.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Refs returns the current count. For tests and diagnostics only; the value
// may be stale by the time the caller looks at it.
func (c *Count) Refs() int64 {
	return c.n.Load()
}
