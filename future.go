// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"sync"
)

// future is a one-shot result. The first settle wins.
type future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

// settle stores the result and reports whether this call was the one that
// settled the future.
func (f *future[T]) settle(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		settled = true
	})
	return settled
}

func (f *future[T]) settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// wait blocks until the future settles or ctx is done. A settled result
// wins over a cancelled context.
func (f *future[T]) wait(ctx context.Context) (T, error) {
	if f.settled() {
		return f.val, f.err
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
