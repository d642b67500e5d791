package readmostly

// Handle is a counted read capability over one version. A valid Handle keeps
// its version alive until released. The zero Handle is empty.
//
// Handles compare by identity of the referenced value: h.Get() == g.Get()
// exactly when both reference the same version (or both are empty).
type Handle[T any] struct {
	v *version[T]
}

// Valid reports whether the handle references a live version.
func (h Handle[T]) Valid() bool {
	return h.v != nil
}

// Get returns the held value, or nil for an empty handle. Callers must check
// Valid (or the returned pointer) before dereferencing.
func (h Handle[T]) Get() *T {
	if h.v == nil {
		return nil
	}
	return h.v.value
}

// Clone returns an independent handle to the same version, taking one more
// reference. Cloning an empty handle yields an empty handle.
func (h Handle[T]) Clone() Handle[T] {
	if h.v != nil {
		h.v.rc.Acquire()
	}
	return Handle[T]{v: h.v}
}

// Release drops the handle's reference, running the version teardown if this
// was the last one. Release is idempotent; the handle is empty afterwards.
func (h *Handle[T]) Release() {
	if h.v == nil {
		return
	}
	v := h.v
	h.v = nil
	v.release()
}

// Weak returns a non-owning reference to the handle's version.
func (h Handle[T]) Weak() Weak[T] {
	return Weak[T]{v: h.v}
}

// Weak references a version without keeping it alive. The zero Weak is empty.
type Weak[T any] struct {
	v *version[T]
}

// Lock upgrades the weak reference to a Handle if the version is still
// alive. ok is false when the version has already been torn down, which is a
// normal outcome, not an error.
func (w Weak[T]) Lock() (h Handle[T], ok bool) {
	if w.v == nil {
		return Handle[T]{}, false
	}
	if !w.v.rc.TryAcquire() {
		return Handle[T]{}, false
	}
	return Handle[T]{v: w.v}, true
}
