// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package engine

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrVersion is reported when a database is opened at a version lower
	// than the stored one.
	ErrVersion = errors.New("version error")

	// ErrAbort is reported when an upgrade transaction is aborted, either
	// because the upgrade handler failed or the upgrading connection was
	// closed before the upgrade committed.
	ErrAbort = errors.New("upgrade aborted")

	// ErrData is returned by Cmp for values that are not valid keys.
	ErrData = errors.New("data error")

	// ErrNotFound is returned for object stores that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraint is returned when creating an object store that exists.
	ErrConstraint = errors.New("constraint error")

	// ErrClosed is returned when a connection or transaction is used after
	// it has been closed or finished.
	ErrClosed = errors.New("closed")
)

// Engine is a versioned storage engine with an event-driven open/delete
// protocol. Handlers must be attached to the request before it is passed
// to the engine; the engine dispatches events on its own goroutines.
type Engine interface {
	// Open opens the latest version of name, creating version 1 if the
	// database does not exist.
	Open(req *Request, name string)

	// OpenVersion opens name at version, upgrading if the stored version
	// is lower. version must be positive.
	OpenVersion(req *Request, name string, version uint64)

	// DeleteDatabase deletes name. Deleting a database that does not exist
	// succeeds.
	DeleteDatabase(req *Request, name string)

	// Cmp compares two keys, returning -1, 0 or 1.
	Cmp(a, b any) (int, error)
}

// Lister is implemented by engines that can enumerate their databases.
type Lister interface {
	Databases(ctx context.Context) ([]DatabaseInfo, error)
}

// DatabaseInfo describes a committed database.
type DatabaseInfo struct {
	Name    string
	Version uint64
}

// Conn is an open connection to a database.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	Name() string
	Version() uint64
	ObjectStoreNames() []string

	// Close closes the connection. It never blocks and may be called more
	// than once. Closing during an upgrade aborts the upgrade.
	Close() error

	// OnVersionChange sets the handler called when another request wants
	// to upgrade or delete the database while this connection is open.
	OnVersionChange(h Handler)
}

// UpgradeTx is the version-change transaction passed to upgrade handlers.
type UpgradeTx interface {
	CreateObjectStore(name string) error
	DeleteObjectStore(name string) error
	ObjectStoreNames() []string
}

// NullVersion is a version that may be absent, the way a blocked or
// deletion event reports "no new version".
type NullVersion struct {
	Value uint64
	Valid bool
}

// Some returns a present version.
func Some(v uint64) NullVersion {
	return NullVersion{Value: v, Valid: true}
}

func (v NullVersion) String() string {
	if !v.Valid {
		return "null"
	}
	return strconv.FormatUint(v.Value, 10)
}
