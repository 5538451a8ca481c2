// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Schema is the committed state of one database.
type Schema struct {
	Name         string
	Version      uint64
	ObjectStores []string
}

// Backend persists committed schemas for a Lifecycle.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Load returns the committed schema of name and whether it exists.
	Load(ctx context.Context, name string) (Schema, bool, error)

	// Commit makes s the committed schema of s.Name, creating the
	// database if needed.
	Commit(ctx context.Context, s Schema) error

	// Drop removes a database. Dropping a missing database is not an error.
	Drop(ctx context.Context, name string) error

	// List returns the committed databases ordered by name.
	List(ctx context.Context) ([]DatabaseInfo, error)
}

// Options configure a Lifecycle.
type Options struct {
	// Logger receives debug traces and unhandled request errors.
	// Uses slog.Default() if nil.
	Logger *slog.Logger

	// OmitVersionFields leaves OldVersion and NewVersion unset on delete
	// success events, like engines that never populate them.
	OmitVersionFields bool

	// NonNullDeleteVersion reports the stored version as NewVersion on
	// blocked delete events instead of null.
	NonNullDeleteVersion bool
}

func (o Options) defaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Lifecycle implements Engine on top of a Backend. Requests for the same
// database name run one at a time, in submission order, each on a
// goroutine owned by the Lifecycle. Connections are tracked in memory, so
// blocking only happens between connections of the same Lifecycle.
type Lifecycle struct {
	backend Backend
	opts    Options

	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is the per-name request queue and connection set.
type lane struct {
	name    string
	queue   []func()
	running bool
	conns   map[*conn]struct{}
	changed chan struct{} // closed and replaced whenever a connection closes
}

func New(b Backend, opts Options) *Lifecycle {
	return &Lifecycle{
		backend: b,
		opts:    opts.defaults(),
		lanes:   make(map[string]*lane),
	}
}

func (l *Lifecycle) Open(req *Request, name string) {
	l.submit(name, func(ln *lane) {
		l.open(req, ln, 0, false)
	})
}

func (l *Lifecycle) OpenVersion(req *Request, name string, version uint64) {
	l.submit(name, func(ln *lane) {
		if version == 0 {
			l.fail(req, fmt.Errorf("%q: version must be positive: %w", name, ErrVersion))
			return
		}
		l.open(req, ln, version, true)
	})
}

func (l *Lifecycle) DeleteDatabase(req *Request, name string) {
	l.submit(name, func(ln *lane) {
		l.delete(req, ln)
	})
}

func (l *Lifecycle) Cmp(a, b any) (int, error) {
	return Compare(a, b)
}

func (l *Lifecycle) Databases(ctx context.Context) ([]DatabaseInfo, error) {
	return l.backend.List(ctx)
}

// submit queues op on the lane for name, starting the lane if it is idle.
func (l *Lifecycle) submit(name string, op func(*lane)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.lanes[name]
	if !ok {
		ln = &lane{
			name:    name,
			conns:   make(map[*conn]struct{}),
			changed: make(chan struct{}),
		}
		l.lanes[name] = ln
	}
	ln.queue = append(ln.queue, func() { op(ln) })
	if !ln.running {
		ln.running = true
		go l.run(ln)
	}
}

func (l *Lifecycle) run(ln *lane) {
	for {
		l.mu.Lock()
		if len(ln.queue) == 0 {
			ln.running = false
			if len(ln.conns) == 0 {
				delete(l.lanes, ln.name)
			}
			l.mu.Unlock()
			return
		}
		op := ln.queue[0]
		ln.queue = ln.queue[1:]
		l.mu.Unlock()

		op()
	}
}

func (l *Lifecycle) open(req *Request, ln *lane, version uint64, explicit bool) {
	ctx := context.Background()

	committed, exists, err := l.backend.Load(ctx, ln.name)
	if err != nil {
		l.fail(req, err)
		return
	}
	if !explicit {
		version = 1
		if exists {
			version = committed.Version
		}
	}
	if exists && version < committed.Version {
		l.fail(req, fmt.Errorf("%q: requested version %d is less than the existing version %d: %w",
			ln.name, version, committed.Version, ErrVersion))
		return
	}
	if !exists {
		committed = Schema{Name: ln.name}
	}

	c := l.connect(ln, committed)
	l.opts.Logger.Debug("open", "name", ln.name, "conn", c.id, "version", version)

	if version > committed.Version {
		l.versionChange(req, ln, c, committed.Version, Some(version))
		if err := l.upgrade(ctx, req, c, committed, version); err != nil {
			c.Close()
			l.fail(req, err)
			return
		}
	}

	if c.isClosed() {
		l.fail(req, fmt.Errorf("%q: connection closed before open completed: %w", ln.name, ErrAbort))
		return
	}
	req.Dispatch(&Event{Type: EventSuccess, Result: c})
}

func (l *Lifecycle) delete(req *Request, ln *lane) {
	ctx := context.Background()

	committed, exists, err := l.backend.Load(ctx, ln.name)
	if err != nil {
		l.fail(req, err)
		return
	}

	if exists {
		newVersion := NullVersion{}
		if l.opts.NonNullDeleteVersion {
			newVersion = Some(committed.Version)
		}
		l.versionChange(req, ln, nil, committed.Version, newVersion)

		if err := l.backend.Drop(ctx, ln.name); err != nil {
			l.fail(req, err)
			return
		}
		l.opts.Logger.Debug("deleted", "name", ln.name, "version", committed.Version)
	}

	ev := &Event{Type: EventSuccess}
	if !l.opts.OmitVersionFields {
		ev.OldVersion = Some(committed.Version)
	}
	req.Dispatch(ev)
}

// versionChange notifies the open connections of ln other than except,
// dispatches a blocked event on req if any of them stays open, and waits
// until all of them are closed.
func (l *Lifecycle) versionChange(req *Request, ln *lane, except *conn, oldVersion uint64, newVersion NullVersion) {
	for _, o := range l.openConns(ln, except) {
		if h := o.versionChangeHandler(); h != nil {
			h(&Event{Type: EventVersionChange, OldVersion: Some(oldVersion), NewVersion: newVersion})
		}
	}

	if len(l.openConns(ln, except)) == 0 {
		return
	}

	l.opts.Logger.Debug("blocked", "name", ln.name, "oldVersion", oldVersion, "newVersion", newVersion)
	req.Dispatch(&Event{Type: EventBlocked, OldVersion: Some(oldVersion), NewVersion: newVersion})

	for {
		l.mu.Lock()
		open := l.countOpen(ln, except)
		changed := ln.changed
		l.mu.Unlock()
		if open == 0 {
			return
		}
		<-changed
	}
}

// upgrade runs the version-change transaction for c and commits it.
func (l *Lifecycle) upgrade(ctx context.Context, req *Request, c *conn, committed Schema, version uint64) error {
	tx := &upgradeTx{stores: slices.Clone(committed.ObjectStores)}
	c.begin(version, tx)

	herr := req.Dispatch(&Event{
		Type:       EventUpgradeNeeded,
		Result:     c,
		Tx:         tx,
		OldVersion: Some(committed.Version),
		NewVersion: Some(version),
	})
	tx.finish()

	if herr != nil || c.isClosed() {
		c.end(committed)
		return fmt.Errorf("%q: upgrade to version %d: %w", c.name, version, ErrAbort)
	}

	next := Schema{Name: c.name, Version: version, ObjectStores: tx.ObjectStoreNames()}
	if err := l.backend.Commit(ctx, next); err != nil {
		c.end(committed)
		return err
	}
	c.end(next)
	l.opts.Logger.Debug("upgraded", "name", c.name, "from", committed.Version, "to", version)
	return nil
}

// fail dispatches an error event and reports it unless a handler
// prevented the default.
func (l *Lifecycle) fail(req *Request, err error) {
	ev := &Event{Type: EventError, Err: err}
	req.Dispatch(ev)
	if !ev.DefaultPrevented() {
		l.opts.Logger.Warn("unhandled request error", "error", err)
	}
}

func (l *Lifecycle) connect(ln *lane, s Schema) *conn {
	c := &conn{
		id:      uuid.Must(uuid.NewV7()).String(),
		lc:      l,
		ln:      ln,
		name:    ln.name,
		version: s.Version,
		stores:  slices.Clone(s.ObjectStores),
	}
	l.mu.Lock()
	ln.conns[c] = struct{}{}
	l.mu.Unlock()
	return c
}

func (l *Lifecycle) openConns(ln *lane, except *conn) []*conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	var list []*conn
	for c := range ln.conns {
		if c != except {
			list = append(list, c)
		}
	}
	return list
}

func (l *Lifecycle) countOpen(ln *lane, except *conn) int {
	n := len(ln.conns)
	if _, ok := ln.conns[except]; ok {
		n--
	}
	return n
}
