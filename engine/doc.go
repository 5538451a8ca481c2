// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package engine defines the versioned storage engine driven by dbfactory
// and provides Lifecycle, a reference implementation over a pluggable
// Backend.
//
// # Protocol
//
// An operation is a Request. The caller attaches handlers for the success,
// error, blocked and upgradeneeded events, then hands the request to an
// Engine method. The engine dispatches events on its own goroutine, one at
// a time per request; a request finishes with exactly one success or error
// event.
//
//	req := engine.NewRequest()
//	req.OnSuccess(func(ev *engine.Event) { ... ev.Result ... })
//	req.OnError(func(ev *engine.Event) { ev.PreventDefault(); ... ev.Err ... })
//	req.OnBlocked(func(ev *engine.Event) { ... })
//	eng.OpenVersion(req, "books", 2)
//
// Handler slots are replaceable while the request is pending. Setting a new
// success handler after a blocked event redirects the eventual outcome of
// the same request.
//
// # Blocking
//
// Upgrading or deleting a database first sends a versionchange event to
// every other open connection. If any of them is still open afterwards the
// request receives a blocked event and then waits, without a timeout,
// until they are all closed.
//
// # Error reporting
//
// Error events whose handlers do not call PreventDefault are logged at
// Warn level by Lifecycle.
package engine
