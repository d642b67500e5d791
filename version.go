package readmostly

import (
	"github.com/nanjiek/readmostly/refcount"
)

// version is one immutable snapshot: the held value plus its liveness count.
// The count starts at 1, owned by the publishing slot. An empty Ptr holds no
// version at all, so a version's value is never nil.
type version[T any] struct {
	value    *T
	rc       *refcount.Count
	teardown func(*T)
}

func newVersion[T any](value *T, teardown func(*T)) *version[T] {
	return &version[T]{
		value:    value,
		rc:       refcount.New(),
		teardown: teardown,
	}
}

// release drops one reference and, on the transition to zero, runs the teardown
// on the releasing goroutine. The refcount contract makes the transition
// happen for exactly one caller.
func (v *version[T]) release() {
	if v.rc.Release() {
		if v.teardown != nil {
			v.teardown(v.value)
		}
	}
}
