// Package baton provides a one-shot cross-goroutine signal and a small
// request/respond rendezvous built on it. It exists for test scaffolding;
// nothing in the readmostly production contract depends on it.
package baton

import (
	"sync"
)

// Baton is a one-shot signal: Post fires it at most once, Wait blocks until
// it has fired. Posting again is a no-op.
type Baton struct {
	once sync.Once
	ch   chan struct{}
}

// New returns an unfired Baton.
func New() *Baton {
	return &Baton{ch: make(chan struct{})}
}

// Post fires the baton. Safe to call more than once; only the first call has
// an effect.
func (b *Baton) Post() {
	b.once.Do(func() { close(b.ch) })
}

// Wait blocks until the baton has been posted.
func (b *Baton) Wait() {
	<-b.ch
}

// TryWait reports whether the baton has been posted, without blocking.
func (b *Baton) TryWait() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

// Coordinator pairs two batons into a rendezvous: one side calls
// RequestAndWait, the other calls WaitForRequest, does its step, then calls
// Completed.
type Coordinator struct {
	request  *Baton
	complete *Baton
}

// NewCoordinator returns a Coordinator with both sides unfired.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		request:  New(),
		complete: New(),
	}
}

// RequestAndWait signals the other side and blocks until it reports
// completion.
func (c *Coordinator) RequestAndWait() {
	c.request.Post()
	c.complete.Wait()
}

// WaitForRequest blocks until the requesting side has signalled.
func (c *Coordinator) WaitForRequest() {
	c.request.Wait()
}

// Completed unblocks the requesting side.
func (c *Coordinator) Completed() {
	c.complete.Post()
}
