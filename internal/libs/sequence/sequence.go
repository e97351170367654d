// Package sequence provides a strict FIFO executor for tasks that mutate shared
// state. Tasks added to a Sequence run one at a time, in the order they were
// added, regardless of how many goroutines submit them.
package sequence

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Task is a unit of work run by a Sequence. The context is the one given to Add.
type Task func(ctx context.Context) error

// Future is the pending result of a Task added to a Sequence.
type Future struct {
	done chan struct{}
	err  error
}

// Done returns a channel that is closed once the task has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the task's error. It must only be called after Done is closed.
func (f *Future) Err() error { return f.err }

// Wait blocks until the task settles or ctx is done. Abandoning the wait does
// not cancel the task: it still runs in its turn.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sequence runs tasks in strict submission order. A task does not start until
// the previous one has settled, and a failing task does not affect those queued
// after it.
type Sequence struct {
	mtx sync.Mutex
	// tail is closed when the most recently added task settles.
	tail chan struct{}
	// pending counts tasks added but not yet settled.
	pending int
}

// New returns an empty Sequence.
func New() *Sequence {
	return &Sequence{}
}

// Add queues task behind every previously added task and returns its Future.
func (s *Sequence) Add(ctx context.Context, task Task) *Future {
	f := &Future{done: make(chan struct{})}

	s.mtx.Lock()
	prev := s.tail
	s.tail = f.done
	s.pending++
	s.mtx.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}
		f.err = run(ctx, task)

		s.mtx.Lock()
		s.pending--
		s.mtx.Unlock()

		close(f.done)
	}()

	return f
}

// Run adds task and waits for it to settle.
func (s *Sequence) Run(ctx context.Context, task Task) error {
	return s.Add(ctx, task).Wait(ctx)
}

// Pending returns the number of tasks that have been added and not yet settled.
func (s *Sequence) Pending() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.pending
}

func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sequenced task: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}
