package refcount

import (
	"sync"
	"testing"
)

func TestCountLifecycle(t *testing.T) {
	c := New()
	if got := c.Refs(); got != 1 {
		t.Fatalf("new count = %d, want 1", got)
	}

	c.Acquire()
	if got := c.Refs(); got != 2 {
		t.Errorf("after Acquire = %d, want 2", got)
	}

	if c.Release() {
		t.Error("Release reported zero with a reference outstanding")
	}
	if !c.Release() {
		t.Error("final Release did not report zero")
	}
}

func TestTryAcquireOnDeadCount(t *testing.T) {
	c := New()
	if !c.TryAcquire() {
		t.Fatal("TryAcquire on a live count failed")
	}
	c.Release()
	c.Release()

	if c.TryAcquire() {
		t.Error("TryAcquire revived a dead count")
	}
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	c := New()
	c.Release()

	defer func() {
		if recover() == nil {
			t.Error("Release below zero did not panic")
		}
	}()
	c.Release()
}

func TestExactlyOneZeroObserver(t *testing.T) {
	const holders = 64

	c := New()
	for i := 1; i < holders; i++ {
		c.Acquire()
	}

	var wg sync.WaitGroup
	zeros := make(chan struct{}, holders)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Release() {
				zeros <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(zeros)

	n := 0
	for range zeros {
		n++
	}
	if n != 1 {
		t.Errorf("%d releases observed zero, want exactly 1", n)
	}
}

func TestTryAcquireRacingRelease(t *testing.T) {
	const rounds = 1000

	for i := 0; i < rounds; i++ {
		c := New()
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			c.Release()
		}()
		go func() {
			defer wg.Done()
			if c.TryAcquire() {
				c.Release()
			}
		}()
		wg.Wait()

		if got := c.Refs(); got != 0 {
			t.Fatalf("round %d: refs = %d, want 0", i, got)
		}
	}
}
