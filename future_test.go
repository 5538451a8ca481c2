// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestFuture_FirstSettleWins(t *testing.T) {
	f := newFuture[int]()
	if f.settled() {
		t.Fatal("new future should not be settled")
	}
	if !f.settle(1, nil) {
		t.Fatal("first settle should win")
	}
	if f.settle(2, errors.New("late")) {
		t.Fatal("second settle should lose")
	}
	v, err := f.wait(context.Background())
	if v != 1 || err != nil {
		t.Errorf("expected 1, nil; got %d, %v", v, err)
	}
}

func TestFuture_ConcurrentWaiters(t *testing.T) {
	f := newFuture[string]()
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.wait(context.Background())
		}()
	}
	f.settle("done", nil)
	wg.Wait()
	for i, r := range results {
		if r != "done" {
			t.Errorf("waiter %d: expected done, got %q", i, r)
		}
	}
}

func TestFuture_SettledWinsOverCancel(t *testing.T) {
	f := newFuture[int]()
	f.settle(7, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if v, err := f.wait(ctx); v != 7 || err != nil {
		t.Errorf("expected 7, nil; got %d, %v", v, err)
	}

	g := newFuture[int]()
	if _, err := g.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if g.settled() {
		t.Error("cancelled wait must not settle the future")
	}
}

func TestBlockedError_Discard(t *testing.T) {
	closed := make(chan int, 1)
	e := &BlockedError[int]{
		Name:    "db",
		resume:  newFuture[int](),
		discard: func(v int) { closed <- v },
	}
	if !errors.Is(e, ErrBlocked) {
		t.Error("BlockedError should match ErrBlocked")
	}
	e.Discard()
	e.resume.settle(42, nil)
	if v := <-closed; v != 42 {
		t.Errorf("expected discarded value 42, got %d", v)
	}
}
