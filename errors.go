// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdhender/dbfactory/engine"
)

var (
	// ErrCapabilityUnavailable is returned when the Source has no engine.
	// It is not retryable.
	ErrCapabilityUnavailable = errors.New("no storage engine available")

	// ErrBlocked matches every *BlockedError. Only the errors returned
	// under RetryOnBlocked match it without being a *BlockedError.
	ErrBlocked = errors.New("blocked by open connections")

	// ErrInvalidName is returned for an empty database name.
	ErrInvalidName = errors.New("database name must not be empty")
)

// BlockedError reports that open connections keep a request from
// proceeding. The request is still pending in the engine: Resume waits
// for its outcome, which the engine delivers once the blocking
// connections are closed.
type BlockedError[T any] struct {
	Name       string
	OldVersion uint64
	NewVersion engine.NullVersion

	resume  *future[T]
	discard func(T)
}

// OpenBlockedError is returned by Open.
type OpenBlockedError = BlockedError[engine.Conn]

// DeleteBlockedError is returned by Delete and DeleteConn.
type DeleteBlockedError = BlockedError[VersionChange]

func (e *BlockedError[T]) Error() string {
	return fmt.Sprintf("%q: version change %d -> %s: %v", e.Name, e.OldVersion, e.NewVersion, ErrBlocked)
}

func (e *BlockedError[T]) Is(target error) bool {
	return target == ErrBlocked
}

// Resume waits for the blocked request to settle. It may be called any
// number of times and from any goroutine; every call observes the same
// outcome. Cancelling ctx abandons only this wait.
func (e *BlockedError[T]) Resume(ctx context.Context) (T, error) {
	return e.resume.wait(ctx)
}

// Discard gives up on the request. The request stays pending in the
// engine; if it later yields a connection, that connection is closed.
func (e *BlockedError[T]) Discard() {
	go func() {
		v, err := e.resume.wait(context.Background())
		if err == nil && e.discard != nil {
			e.discard(v)
		}
	}()
}
