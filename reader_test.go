package readmostly

import (
	"sync/atomic"
	"testing"
)

func TestReaderCacheStates(t *testing.T) {
	var cnt atomic.Int64
	p := trackedPtr()
	defer p.Close()

	r := p.Reader()
	defer r.Close()

	// Empty: nothing published yet.
	if h := r.Read(); h.Valid() {
		t.Fatal("read on empty Ptr returned a valid handle")
	}
	if r.pinned != nil {
		t.Fatal("entry pinned a version while empty")
	}

	// Empty -> Cached on first read.
	p.Replace(newTracked(1, &cnt))
	h := r.Read()
	h.Release()
	if r.pinned != p.cur.Load() {
		t.Error("entry does not pin the current version after a read")
	}

	// Cached hit: no refresh, count stays current + pin.
	h = r.Read()
	if got := r.pinned.rc.Refs(); got != 3 {
		t.Errorf("refs on cache hit = %d, want 3", got)
	}
	h.Release()

	// Cached(V) -> Cached(V') when the pointer advances.
	old := r.pinned
	p.Replace(newTracked(2, &cnt))
	if r.pinned == old {
		t.Error("sweep left the stale pin in place")
	}
	h = r.Read()
	if h.Get().value != 2 {
		t.Errorf("read after advance = %d, want 2", h.Get().value)
	}
	h.Release()
	if r.pinned != p.cur.Load() {
		t.Error("entry did not re-pin the new current version")
	}

	// Cached -> Invalidated by the writer, without reader participation.
	p.Replace(nil)
	if r.pinned != nil {
		t.Error("sweep left a pin after Replace(nil)")
	}
	if got := cnt.Load(); got != 0 {
		t.Errorf("live versions = %d, want 0", got)
	}
}

func TestReaderCloseReleasesPin(t *testing.T) {
	var cnt atomic.Int64
	p := trackedPtr()
	defer p.Close()

	p.Replace(newTracked(1, &cnt))

	r := p.Reader()
	h := r.Read()
	h.Release()

	// Pin is the only thing besides the slot keeping the version.
	r.Close()
	p.Replace(nil)
	if got := cnt.Load(); got != 0 {
		t.Errorf("live versions after reader close + replace = %d, want 0", got)
	}
}

func TestReaderAfterClosedPtr(t *testing.T) {
	p := New[tracked]()
	p.Close()

	// Readers joined after Close never register; reads observe empty.
	r := p.Reader()
	if h := r.Read(); h.Valid() {
		t.Error("read on closed Ptr returned a valid handle")
	}
	r.Close()
}
