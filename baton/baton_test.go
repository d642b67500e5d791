package baton

import (
	"sync"
	"testing"
)

func TestPostUnblocksWait(t *testing.T) {
	b := New()
	if b.TryWait() {
		t.Fatal("TryWait true before Post")
	}

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	b.Post()
	<-done

	if !b.TryWait() {
		t.Error("TryWait false after Post")
	}
}

func TestPostIsOneShot(t *testing.T) {
	b := New()
	b.Post()
	b.Post() // must not panic on the closed channel
	b.Wait()
}

func TestCoordinatorRendezvous(t *testing.T) {
	c := NewCoordinator()
	var order []string
	var mu sync.Mutex

	step := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WaitForRequest()
		step("work")
		c.Completed()
	}()

	step("request")
	c.RequestAndWait()
	step("resumed")
	<-done

	want := []string{"request", "work", "resumed"}
	for i, s := range want {
		if order[i] != s {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
