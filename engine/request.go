// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package engine

import (
	"sync"
)

// EventType identifies the events dispatched on requests and connections.
type EventType int

const (
	EventSuccess EventType = iota + 1
	EventError
	EventBlocked
	EventUpgradeNeeded
	EventVersionChange
)

func (t EventType) String() string {
	switch t {
	case EventSuccess:
		return "success"
	case EventError:
		return "error"
	case EventBlocked:
		return "blocked"
	case EventUpgradeNeeded:
		return "upgradeneeded"
	case EventVersionChange:
		return "versionchange"
	}
	return "unknown"
}

// Event is delivered to request and connection handlers.
type Event struct {
	Type EventType

	// Result is the connection for open success and upgradeneeded events.
	Result Conn

	// Err is set on error events.
	Err error

	OldVersion NullVersion
	NewVersion NullVersion

	// Tx is the version-change transaction on upgradeneeded events.
	Tx UpgradeTx

	defaultPrevented bool
}

// PreventDefault stops the engine from reporting an error event itself.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Handler reacts to an event.
type Handler func(*Event)

// UpgradeHandler reacts to an upgradeneeded event. A non-nil error aborts
// the upgrade transaction.
type UpgradeHandler func(*Event) error

// ReadyState is the state of a request.
type ReadyState int

const (
	Pending ReadyState = iota
	Done
)

// Request is an in-flight open or delete operation. Each handler slot holds
// one handler; setting a slot replaces the previous handler, which is how a
// pending request is rebound to a new continuation.
type Request struct {
	mu       sync.Mutex
	success  Handler
	failure  Handler
	blocked  Handler
	upgrade  UpgradeHandler
	state    ReadyState
	result   Conn
	err      error
	finished chan struct{}
}

func NewRequest() *Request {
	return &Request{finished: make(chan struct{})}
}

func (r *Request) OnSuccess(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = h
}

func (r *Request) OnError(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = h
}

func (r *Request) OnBlocked(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = h
}

func (r *Request) OnUpgradeNeeded(h UpgradeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upgrade = h
}

func (r *Request) ReadyState() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the outcome of a finished request.
func (r *Request) Result() (Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Finished is closed once a success or error event has been dispatched.
func (r *Request) Finished() <-chan struct{} {
	return r.finished
}

// Dispatch delivers ev to the handler currently in the slot for its type.
// Handlers run on the caller's goroutine, outside the request lock, so a
// handler may rebind slots of the same request. A success or error event
// finishes the request; events dispatched after that are dropped. The
// returned error is the upgrade handler's result.
func (r *Request) Dispatch(ev *Event) error {
	r.mu.Lock()
	if r.state == Done {
		r.mu.Unlock()
		return nil
	}
	var h Handler
	var uh UpgradeHandler
	switch ev.Type {
	case EventSuccess:
		h = r.success
	case EventError:
		h = r.failure
	case EventBlocked:
		h = r.blocked
	case EventUpgradeNeeded:
		uh = r.upgrade
	}
	if ev.Type == EventSuccess || ev.Type == EventError {
		r.state = Done
		r.result, r.err = ev.Result, ev.Err
		close(r.finished)
	}
	r.mu.Unlock()

	if uh != nil {
		return uh(ev)
	}
	if h != nil {
		h(ev)
	}
	return nil
}
