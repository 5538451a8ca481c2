// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"sync/atomic"

	"github.com/mdhender/dbfactory/engine"
)

// Binding is a named way to reach an engine. Lookup returns nil when the
// engine is not available.
type Binding struct {
	Name   string
	Lookup func() engine.Engine
}

// Static returns a binding that always resolves to e.
func Static(name string, e engine.Engine) Binding {
	return Binding{Name: name, Lookup: func() engine.Engine { return e }}
}

// OverrideBinding is the name Resolve reports for the override slot.
const OverrideBinding = "override"

// Source resolves the active engine. Candidates are tried in a fixed
// order: the override slot, the platform binding, then the fallbacks in
// the order given to NewSource. The first candidate that returns an engine
// wins. Nothing is cached, so changing the override takes effect on the
// next call.
type Source struct {
	override  atomic.Pointer[engine.Engine]
	platform  Binding
	fallbacks []Binding
}

func NewSource(platform Binding, fallbacks ...Binding) *Source {
	return &Source{platform: platform, fallbacks: fallbacks}
}

// Override makes e take precedence over every binding. A nil e clears the
// override.
func (s *Source) Override(e engine.Engine) {
	if e == nil {
		s.override.Store(nil)
		return
	}
	s.override.Store(&e)
}

// Engine returns the active engine, or nil if none is available.
func (s *Source) Engine() engine.Engine {
	_, e := s.Resolve()
	return e
}

// Resolve returns the active engine and the name of the binding that
// provided it. It returns "", nil if no engine is available.
func (s *Source) Resolve() (string, engine.Engine) {
	if p := s.override.Load(); p != nil {
		return OverrideBinding, *p
	}
	if e := lookup(s.platform); e != nil {
		return s.platform.Name, e
	}
	for _, b := range s.fallbacks {
		if e := lookup(b); e != nil {
			return b.Name, e
		}
	}
	return "", nil
}

func lookup(b Binding) engine.Engine {
	if b.Lookup == nil {
		return nil
	}
	return b.Lookup()
}
