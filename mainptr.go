package readmostly

import (
	"sync"
	"sync/atomic"
)

// Ptr is the writer side: it owns the published current version and the
// replace protocol. Many goroutines may read concurrently; Replace and Close
// must be serialized by the caller. An overlapping writer call panics rather
// than racing silently.
type Ptr[T any] struct {
	cur      atomic.Pointer[version[T]]
	teardown func(*T)

	// writing catches overlapped Replace/Close calls. One uncontended CAS
	// per write, so the guard stays on in release builds.
	writing atomic.Bool

	mu      sync.Mutex
	readers map[*Reader[T]]struct{}
	closed  bool
}

// Option configures a Ptr at construction.
type Option[T any] func(*Ptr[T])

// WithTeardown installs a hook run exactly once per version, on whichever
// goroutine drops its last reference. The hook must not call back into the
// Ptr.
func WithTeardown[T any](fn func(*T)) Option[T] {
	return func(p *Ptr[T]) { p.teardown = fn }
}

// New returns an empty Ptr.
func New[T any](opts ...Option[T]) *Ptr[T] {
	p := &Ptr[T]{readers: make(map[*Reader[T]]struct{})}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWith returns a Ptr holding value, or an empty Ptr when value is nil.
func NewWith[T any](value *T, opts ...Option[T]) *Ptr[T] {
	p := New(opts...)
	if value != nil {
		p.cur.Store(newVersion(value, p.teardown))
	}
	return p
}

// Replace publishes value (nil empties the pointer), releases the writer's
// reference to the prior version, and invalidates every registered reader
// cache still pinning it. The sweep completes before Replace returns: once
// it does, the prior value has been torn down unless an outstanding Handle
// still holds it.
//
// Replace visits each registered reader once; everything else about it is
// O(1). It must not run concurrently with another Replace or with Close.
func (p *Ptr[T]) Replace(value *T) {
	p.beginWrite()
	defer p.endWrite()

	var next *version[T]
	if value != nil {
		next = newVersion(value, p.teardown)
	}
	prior := p.cur.Swap(next)
	if prior == nil {
		return
	}
	prior.release()
	p.sweep(prior)
}

// ReadRaw returns an unsynchronized observer of the current value, or nil
// when empty. It takes no reference: correct only on the writer goroutine or
// when the caller is otherwise serialized against Replace.
func (p *Ptr[T]) ReadRaw() *T {
	v := p.cur.Load()
	if v == nil {
		return nil
	}
	return v.value
}

// ReadShared returns a counted Handle to a version that was current at some
// instant during the call. Always safe under concurrent Replace. Goroutines
// that read repeatedly should prefer a Reader, which caches the handle.
func (p *Ptr[T]) ReadShared() Handle[T] {
	for {
		cur := p.cur.Load()
		if cur == nil {
			return Handle[T]{}
		}
		// TryAcquire fails only if a Replace retired cur and its count
		// already hit zero; reload and try the new current.
		if cur.rc.TryAcquire() {
			return Handle[T]{v: cur}
		}
	}
}

// Weak returns a non-owning reference to the current version.
func (p *Ptr[T]) Weak() Weak[T] {
	return Weak[T]{v: p.cur.Load()}
}

// Reader registers a cache entry for the calling goroutine. The caller must
// Close it when done reading (typically deferred for the goroutine's
// lifetime); open readers make every subsequent Replace visit them.
func (p *Ptr[T]) Reader() *Reader[T] {
	r := &Reader[T]{owner: p}
	p.mu.Lock()
	if !p.closed {
		p.readers[r] = struct{}{}
	}
	p.mu.Unlock()
	return r
}

// Close empties the pointer, drops every registered reader cache, and
// releases the writer's reference to the current version. Readers still
// holding Handles keep their versions alive until they release them; new
// reads observe empty. Close must be serialized with Replace.
func (p *Ptr[T]) Close() {
	p.beginWrite()
	defer p.endWrite()

	p.mu.Lock()
	rs := make([]*Reader[T], 0, len(p.readers))
	for r := range p.readers {
		rs = append(rs, r)
	}
	p.readers = nil
	p.closed = true
	p.mu.Unlock()

	// Unpublish before detaching. A Read racing the detach could otherwise
	// re-pin the still-published version after its entry was dropped from
	// the registry, and no sweep would ever release that pin. With the slot
	// already nil, detach serializes on the entry mutex behind any in-flight
	// Read and takes whatever pin it left.
	if prior := p.cur.Swap(nil); prior != nil {
		prior.release()
	}
	for _, r := range rs {
		r.detach()
	}
}

// sweep force-invalidates every reader cache still pinning prior. Runs on
// the writer goroutine, after prior has been unpublished.
func (p *Ptr[T]) sweep(prior *version[T]) {
	p.mu.Lock()
	rs := make([]*Reader[T], 0, len(p.readers))
	for r := range p.readers {
		rs = append(rs, r)
	}
	p.mu.Unlock()

	for _, r := range rs {
		r.invalidate(prior)
	}
}

func (p *Ptr[T]) beginWrite() {
	if !p.writing.CompareAndSwap(false, true) {
		panic("readmostly: concurrent writer calls on Ptr")
	}
}

func (p *Ptr[T]) endWrite() {
	p.writing.Store(false)
}

func (p *Ptr[T]) dropReader(r *Reader[T]) {
	p.mu.Lock()
	if p.readers != nil {
		delete(p.readers, r)
	}
	p.mu.Unlock()
}
