// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mdhender/dbfactory/engine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VersionChange is the outcome of a deletion. NewVersion is always null.
type VersionChange struct {
	OldVersion uint64
	NewVersion engine.NullVersion
}

// Delete deletes database name. Deleting a database that does not exist
// succeeds with OldVersion 0.
//
// Under ResumeOnBlocked, open connections that keep the deletion from
// proceeding produce a *DeleteBlockedError whose Resume yields the outcome
// of the same request. Under RetryOnBlocked the request gets RetryDelay to
// complete and the call then fails with ErrBlocked; the request itself
// stays queued in the engine.
func (f *Factory) Delete(ctx context.Context, name string) (VersionChange, error) {
	if name == "" {
		return VersionChange{}, ErrInvalidName
	}
	return f.delete(ctx, name)
}

// DeleteConn closes conn, waits FlushDelay so the engine can finish
// writing, and deletes its database.
func (f *Factory) DeleteConn(ctx context.Context, conn engine.Conn) (VersionChange, error) {
	name := conn.Name()
	conn.Close()

	if f.cfg.FlushDelay > 0 {
		f.cfg.Logger.Debug("flush delay", "name", name, "delay", f.cfg.FlushDelay)
		timer := time.NewTimer(f.cfg.FlushDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return VersionChange{}, ctx.Err()
		}
	}
	return f.delete(ctx, name)
}

func (f *Factory) delete(ctx context.Context, name string) (VersionChange, error) {
	binding, eng, err := f.engine()
	if err != nil {
		return VersionChange{}, err
	}

	ctx, span := tracer.Start(ctx, "dbfactory.Delete", trace.WithAttributes(
		attribute.String("db.name", name),
		attribute.String("db.engine", binding),
	))

	op := &deleteOp{
		name:   name,
		eng:    eng,
		cfg:    f.cfg,
		span:   span,
		logger: f.cfg.Logger,
		slot:   newFuture[VersionChange](),
	}
	first := op.slot

	f.cfg.Logger.Debug("delete issued", "name", name, "engine", binding)
	op.issue()

	res, err := first.wait(ctx)
	endSpan(span, err)
	return res, err
}

// deleteOp is the state of one deletion.
type deleteOp struct {
	name   string
	eng    engine.Engine
	cfg    Config
	span   trace.Span
	logger *slog.Logger

	mu      sync.Mutex
	slot    *future[VersionChange]
	blocked *DeleteBlockedError
	retried bool // RetryOnBlocked grace period started
}

func (op *deleteOp) issue() {
	req := engine.NewRequest()
	req.OnSuccess(op.onSuccess)
	req.OnError(op.onError)
	req.OnBlocked(op.onBlocked)
	op.eng.DeleteDatabase(req, op.name)
}

func (op *deleteOp) current() *future[VersionChange] {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.slot
}

func (op *deleteOp) onSuccess(ev *engine.Event) {
	res := VersionChange{OldVersion: ev.OldVersion.Value}
	if !ev.OldVersion.Valid {
		op.mu.Lock()
		if op.blocked != nil {
			res.OldVersion = op.blocked.OldVersion
		}
		op.mu.Unlock()
	}
	op.current().settle(res, nil)
}

func (op *deleteOp) onError(ev *engine.Event) {
	ev.PreventDefault()
	op.current().settle(VersionChange{}, ev.Err)
}

func (op *deleteOp) onBlocked(ev *engine.Event) {
	op.logger.Debug("delete blocked", "name", op.name, "oldVersion", ev.OldVersion, "newVersion", ev.NewVersion)
	op.span.AddEvent("blocked")

	if op.cfg.BlockedPolicy == RetryOnBlocked {
		op.retry()
		return
	}

	op.mu.Lock()
	if op.blocked != nil {
		op.mu.Unlock()
		return
	}
	resume := newFuture[VersionChange]()
	op.blocked = &DeleteBlockedError{
		Name:       op.name,
		OldVersion: ev.OldVersion.Value,
		// deletion never has a new version, whatever the engine says
		NewVersion: engine.NullVersion{},
		resume:     resume,
	}
	prev := op.slot
	op.slot = resume
	blocked := op.blocked
	op.mu.Unlock()

	prev.settle(VersionChange{}, blocked)
}

// retry gives the still-pending request one RetryDelay to finish and
// fails the call with ErrBlocked if it has not. A second request would
// only queue behind the first.
func (op *deleteOp) retry() {
	op.mu.Lock()
	retried := op.retried
	op.retried = true
	op.mu.Unlock()
	if retried {
		return
	}

	time.AfterFunc(op.cfg.RetryDelay, func() {
		if op.current().settle(VersionChange{}, fmt.Errorf("delete %q: %w", op.name, ErrBlocked)) {
			op.logger.Debug("delete gave up", "name", op.name, "delay", op.cfg.RetryDelay)
		}
	})
}
