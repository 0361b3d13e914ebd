package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promise is the concrete Promise/Future pair used by the generic Actor
// engine's Ask path. It is a single-assignment, broadcast-on-completion
// primitive: Complete may race across goroutines but only the first caller
// wins, and any number of Await/OnComplete callers observe the same result.
type promise[T any] struct {
	mu       sync.Mutex
	done     chan struct{}
	result   fn.Result[T]
	complete bool
}

// NewPromise creates a new, uncompleted Promise/Future pair.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Complete implements Promise.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.complete {
		return false
	}

	p.result = result
	p.complete = true
	close(p.done)

	return true
}

// Future implements Promise.
func (p *promise[T]) Future() Future[T] {
	return p
}

// Await implements Future.
func (p *promise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply implements Future.
func (p *promise[T]) ThenApply(ctx context.Context, f func(T) T) Future[T] {
	next := NewPromise[T]()

	go func() {
		result := p.Await(ctx)
		v, err := result.Unpack()
		if err != nil {
			next.Complete(result)
			return
		}
		next.Complete(fn.Ok(f(v)))
	}()

	return next.Future()
}

// OnComplete implements Future.
func (p *promise[T]) OnComplete(ctx context.Context, f func(fn.Result[T])) {
	go func() {
		f(p.Await(ctx))
	}()
}
