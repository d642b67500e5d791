package readmostly

import (
	"sync"
)

// Reader is a per-goroutine cache entry over one Ptr. While valid it pins
// one reference to the last-observed version, so repeated reads of an
// unchanged pointer clone the pinned handle instead of racing the shared
// slot. The owning writer reaches the entry during Replace to drop the pin
// once the version is superseded.
//
// A Reader belongs to one goroutine; its methods must not be called
// concurrently with each other. The entry mutex exists for the writer's
// sweep, which runs on the writer goroutine.
type Reader[T any] struct {
	owner *Ptr[T]

	// mu orders the owning goroutine's refresh against the writer's
	// invalidation. Distinct from the owner's registry lock: the sweep
	// never holds both.
	mu     sync.Mutex
	pinned *version[T]
}

// Read returns a Handle to a version current at some instant during the
// call. Cache hit: one reference increment on the pinned version. Cache
// miss: the entry re-pins the new current version first.
func (r *Reader[T]) Read() Handle[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		cur := r.owner.cur.Load()
		if cur == nil {
			// Writer moved to empty (or closed). The sweep clears the pin
			// too, but we may run between the swap and the sweep.
			if r.pinned != nil {
				r.pinned.release()
				r.pinned = nil
			}
			return Handle[T]{}
		}
		if cur == r.pinned {
			cur.rc.Acquire()
			return Handle[T]{v: cur}
		}
		if cur.rc.TryAcquire() {
			// Pinned the new current; the stale pin (if the sweep has not
			// taken it yet) goes back now, possibly tearing it down here.
			if r.pinned != nil {
				r.pinned.release()
			}
			r.pinned = cur
			cur.rc.Acquire()
			return Handle[T]{v: cur}
		}
		// cur died between the load and the acquire: a Replace retired it.
		// The slot has a newer version; retry.
	}
}

// Close releases the pinned reference and deregisters the entry from its
// Ptr. The Reader must not be used afterwards.
func (r *Reader[T]) Close() {
	r.owner.dropReader(r)
	r.detach()
}

// invalidate is the writer's side of the replace protocol: if the entry
// still pins prior, drop that reference so the superseded version can die
// before Replace returns.
func (r *Reader[T]) invalidate(prior *version[T]) {
	r.mu.Lock()
	if r.pinned == prior {
		r.pinned = nil
		prior.release()
	}
	r.mu.Unlock()
}

// detach drops whatever the entry pins, whatever version that is. Used by
// Reader.Close and by Ptr.Close.
func (r *Reader[T]) detach() {
	r.mu.Lock()
	if r.pinned != nil {
		r.pinned.release()
		r.pinned = nil
	}
	r.mu.Unlock()
}
