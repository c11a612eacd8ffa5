// Package worker runs CPU-bound parsing off the goroutines that drive network I/O.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many parse jobs run at once.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with size slots; size <= 0 uses GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

// Run executes fn on its own goroutine once a slot is free and waits for the
// result. If ctx ends first the caller gets ctx.Err() and fn, if already
// started, finishes in the background.
func Run[T any](ctx context.Context, p *Pool, fn func() T) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan T, 1)
	go func() {
		defer p.sem.Release(1)
		done <- fn()
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
