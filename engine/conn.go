// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package engine

import (
	"fmt"
	"slices"
	"sync"
)

// conn is a connection handed out by a Lifecycle. Its mutable state is
// guarded by the Lifecycle's mutex.
type conn struct {
	id   string
	lc   *Lifecycle
	ln   *lane
	name string

	version       uint64
	stores        []string
	tx            *upgradeTx
	closed        bool
	versionChange Handler
}

func (c *conn) ID() string   { return c.id }
func (c *conn) Name() string { return c.name }

func (c *conn) Version() uint64 {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	return c.version
}

func (c *conn) ObjectStoreNames() []string {
	c.lc.mu.Lock()
	tx := c.tx
	stores := slices.Clone(c.stores)
	c.lc.mu.Unlock()
	if tx != nil {
		return tx.ObjectStoreNames()
	}
	return stores
}

func (c *conn) Close() error {
	l := c.lc
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	delete(c.ln.conns, c)
	close(c.ln.changed)
	c.ln.changed = make(chan struct{})
	if !c.ln.running && len(c.ln.conns) == 0 && l.lanes[c.name] == c.ln {
		delete(l.lanes, c.name)
	}
	l.opts.Logger.Debug("close", "name", c.name, "conn", c.id)
	return nil
}

func (c *conn) OnVersionChange(h Handler) {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	c.versionChange = h
}

func (c *conn) versionChangeHandler() Handler {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.versionChange
}

func (c *conn) isClosed() bool {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	return c.closed
}

// begin switches c to the upgrade transaction.
func (c *conn) begin(version uint64, tx *upgradeTx) {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	c.version, c.tx = version, tx
}

// end leaves the upgrade transaction with s as the visible schema.
func (c *conn) end(s Schema) {
	c.lc.mu.Lock()
	defer c.lc.mu.Unlock()
	c.version, c.tx = s.Version, nil
	c.stores = slices.Clone(s.ObjectStores)
}

// upgradeTx collects object store changes until the upgrade handler
// returns.
type upgradeTx struct {
	mu       sync.Mutex
	stores   []string
	finished bool
}

func (tx *upgradeTx) CreateObjectStore(name string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.finished {
		return fmt.Errorf("create object store %q: transaction %w", name, ErrClosed)
	}
	if slices.Contains(tx.stores, name) {
		return fmt.Errorf("object store %q already exists: %w", name, ErrConstraint)
	}
	tx.stores = append(tx.stores, name)
	slices.Sort(tx.stores)
	return nil
}

func (tx *upgradeTx) DeleteObjectStore(name string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.finished {
		return fmt.Errorf("delete object store %q: transaction %w", name, ErrClosed)
	}
	i := slices.Index(tx.stores, name)
	if i < 0 {
		return fmt.Errorf("object store %q: %w", name, ErrNotFound)
	}
	tx.stores = slices.Delete(tx.stores, i, i+1)
	return nil
}

func (tx *upgradeTx) ObjectStoreNames() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return slices.Clone(tx.stores)
}

func (tx *upgradeTx) finish() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.finished = true
}
