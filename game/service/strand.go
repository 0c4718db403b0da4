package service

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped rejects tasks submitted after Shutdown.
var ErrStopped = errors.New("service stopped")

// strand is the single goroutine that owns the world. Every mutation and
// every read of live state runs here, strictly in submission order, so
// the model needs no locks.
type strand struct {
	mu     sync.Mutex
	closed bool
	tasks  chan func()
	done   chan struct{}
}

func newStrand(depth int) *strand {
	s := &strand{
		tasks: make(chan func(), depth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *strand) run() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// do runs fn on the strand and waits for it to finish. A caller whose
// context expires stops waiting, but a task that was already queued
// still runs.
func (s *strand) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	// The lock pairs the closed check with the send, so close never
	// races a submission.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	select {
	case s.tasks <- wrapped:
		s.mu.Unlock()
	case <-ctx.Done():
		s.mu.Unlock()
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queued tasks and stops the goroutine. Submissions
// after close fail with ErrStopped.
func (s *strand) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
	s.mu.Unlock()
	<-s.done
}
