// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package dbfactory opens and deletes databases of a versioned storage
// engine and relays the engine's blocking conditions to the caller.
//
// The package implements a lifecycle model where:
//   - Open negotiates the database version and runs a caller-supplied
//     upgrade routine inside the engine's version-change transaction
//   - Delete optionally closes a live connection first and waits for the
//     engine to flush before deleting
//   - A request blocked by other open connections fails with a
//     *BlockedError whose Resume continues the same request
//   - The engine is resolved through a Source on every call
//
// # Basic Usage
//
//	src := dbfactory.NewSource(dbfactory.Static("memory", memengine.New(engine.Options{})))
//	f := dbfactory.New(src, dbfactory.Config{})
//
//	db, err := f.Open(ctx, "library", 2, func(ev *engine.Event) error {
//	    if ev.OldVersion.Value < 1 {
//	        return ev.Tx.CreateObjectStore("books")
//	    }
//	    return nil
//	})
//	var blocked *dbfactory.OpenBlockedError
//	if errors.As(err, &blocked) {
//	    // close the connections that hold the old version, then
//	    db, err = blocked.Resume(ctx)
//	}
//
// # Blocked Requests
//
// Upgrading or deleting a database while other connections to it are open
// makes the engine send them a versionchange event and, if they stay open,
// report the request as blocked. The request is not cancelled: it
// completes as soon as those connections close. Resume waits for that
// outcome; Discard gives up on it. Only blocked errors carry a
// continuation, so callers branch with errors.Is(err, ErrBlocked) or
// errors.As. Every other error is final for the call.
//
// # Configuration
//
// Key Config fields:
//   - FlushDelay: wait between closing a connection and deleting it (100ms)
//   - BlockedPolicy: "resume" (default) or "retry" for the historical
//     fixed-delay-then-fail deletion contract
//   - RetryDelay: grace period of the "retry" policy (100ms)
//
// LoadConfig reads the same fields from DBFACTORY_* environment variables.
package dbfactory
