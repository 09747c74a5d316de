package memory

import (
	"context"
	"sync"
)

// Task is a cancellable background computation with a single-assignment
// result. The result is written once by the goroutine started in Go and read
// by any number of Wait calls.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	val    T
	err    error
}

// Go starts fn on a new goroutine. fn receives a context that is cancelled
// when ctx is cancelled or Cancel is called.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer cancel()
		val, err := fn(ctx)
		t.resolve(val, err)
	}()
	return t
}

func (t *Task[T]) resolve(val T, err error) {
	t.once.Do(func() {
		t.val, t.err = val, err
		close(t.done)
	})
}

// Done is closed once the result is available.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the computation to stop. Wait still returns whatever fn returns.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Wait blocks until the result is available or ctx is done. Giving up on
// ctx cancels the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		t.cancel()
		var zero T
		return zero, ctx.Err()
	}
}
