// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mdhender/dbfactory/engine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UpgradeFunc runs inside the engine's version-change transaction when a
// database is created or opened at a higher version. ev.Result is the
// upgrading connection, ev.Tx the transaction and ev.OldVersion the
// version being replaced (0 for a new database).
type UpgradeFunc func(ev *engine.Event) error

// Open opens database name. A version of 0 opens the current version, or
// creates version 1 if the database does not exist. upgrade may be nil.
//
// If upgrade returns an error, the connection is closed and Open returns
// that error unchanged. If other connections block the version change,
// Open returns an *OpenBlockedError; its Resume yields the outcome of the
// same request once they are closed. Any other engine error is returned
// as reported.
//
// Cancelling ctx stops the wait but not the request; a connection it
// produces later is closed.
func (f *Factory) Open(ctx context.Context, name string, version uint64, upgrade UpgradeFunc) (engine.Conn, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	binding, eng, err := f.engine()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "dbfactory.Open", trace.WithAttributes(
		attribute.String("db.name", name),
		attribute.Int64("db.version", int64(version)),
		attribute.String("db.engine", binding),
	))

	op := &openOp{
		name:    name,
		upgrade: upgrade,
		span:    span,
		logger:  f.cfg.Logger,
		slot:    newFuture[engine.Conn](),
	}
	first := op.slot

	req := engine.NewRequest()
	req.OnSuccess(op.onSuccess)
	req.OnError(op.onError)
	req.OnBlocked(op.onBlocked)
	if upgrade != nil {
		req.OnUpgradeNeeded(op.onUpgradeNeeded)
	}

	f.cfg.Logger.Debug("open issued", "name", name, "version", version, "engine", binding)
	// some engines treat an explicit version differently from none at all
	if version == 0 {
		eng.Open(req, name)
	} else {
		eng.OpenVersion(req, name, version)
	}

	conn, err := first.wait(ctx)
	if err != nil && !first.settled() {
		go op.abandon(first)
	}
	endSpan(span, err)
	return conn, err
}

// openOp is the state of one Open call. slot is the continuation the
// request currently settles; a blocked event swaps in the resume future.
type openOp struct {
	name    string
	upgrade UpgradeFunc
	span    trace.Span
	logger  *slog.Logger

	mu      sync.Mutex
	slot    *future[engine.Conn]
	blocked *OpenBlockedError
}

func (op *openOp) current() *future[engine.Conn] {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.slot
}

// settle completes the current continuation. A connection nobody can
// receive any more is closed.
func (op *openOp) settle(conn engine.Conn, err error) {
	if !op.current().settle(conn, err) && conn != nil {
		conn.Close()
	}
}

func (op *openOp) onSuccess(ev *engine.Event) {
	op.settle(ev.Result, nil)
}

func (op *openOp) onError(ev *engine.Event) {
	ev.PreventDefault()
	op.settle(nil, ev.Err)
}

func (op *openOp) onBlocked(ev *engine.Event) {
	op.mu.Lock()
	if op.blocked != nil {
		op.mu.Unlock()
		return
	}
	resume := newFuture[engine.Conn]()
	op.blocked = &OpenBlockedError{
		Name:       op.name,
		OldVersion: ev.OldVersion.Value,
		NewVersion: ev.NewVersion,
		resume:     resume,
		discard:    closeConn,
	}
	prev := op.slot
	op.slot = resume
	blocked := op.blocked
	op.mu.Unlock()

	op.logger.Debug("open blocked", "name", op.name, "oldVersion", ev.OldVersion, "newVersion", ev.NewVersion)
	op.span.AddEvent("blocked")
	prev.settle(nil, blocked)
}

func (op *openOp) onUpgradeNeeded(ev *engine.Event) error {
	op.logger.Debug("open upgrade", "name", op.name, "oldVersion", ev.OldVersion, "newVersion", ev.NewVersion)
	op.span.AddEvent("upgradeneeded", trace.WithAttributes(
		attribute.Int64("db.old_version", int64(ev.OldVersion.Value)),
		attribute.Int64("db.new_version", int64(ev.NewVersion.Value)),
	))
	if err := op.upgrade(ev); err != nil {
		if ev.Result != nil {
			ev.Result.Close()
		}
		op.current().settle(nil, err)
		return err
	}
	return nil
}

// abandon waits out a call whose caller stopped waiting and closes the
// connection it eventually produces.
func (op *openOp) abandon(first *future[engine.Conn]) {
	conn, err := first.wait(context.Background())
	if err == nil {
		closeConn(conn)
		return
	}
	var blocked *OpenBlockedError
	if errors.As(err, &blocked) {
		blocked.Discard()
	}
}

func closeConn(conn engine.Conn) {
	if conn != nil {
		conn.Close()
	}
}
