// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package dbfactory

import (
	"context"
	"errors"

	"github.com/mdhender/dbfactory/engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mdhender/dbfactory")

// Factory opens and deletes databases on the engine its Source resolves.
// The engine is resolved again for every call.
type Factory struct {
	src *Source
	cfg Config
}

// New returns a factory. It panics if cfg.BlockedPolicy is not a known
// policy; use LoadConfig to validate configuration from the environment.
func New(src *Source, cfg Config) *Factory {
	cfg = cfg.defaults()
	if err := cfg.validate(); err != nil {
		panic(err)
	}
	return &Factory{src: src, cfg: cfg}
}

func (f *Factory) Source() *Source {
	return f.src
}

// Cmp compares two keys with the engine's ordering, returning -1, 0 or 1.
func (f *Factory) Cmp(a, b any) (int, error) {
	_, eng, err := f.engine()
	if err != nil {
		return 0, err
	}
	return eng.Cmp(a, b)
}

// Databases lists the engine's databases. It returns errors.ErrUnsupported
// if the engine cannot enumerate them.
func (f *Factory) Databases(ctx context.Context) ([]engine.DatabaseInfo, error) {
	_, eng, err := f.engine()
	if err != nil {
		return nil, err
	}
	lister, ok := eng.(engine.Lister)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return lister.Databases(ctx)
}

func (f *Factory) engine() (string, engine.Engine, error) {
	binding, eng := f.src.Resolve()
	if eng == nil {
		return "", nil, ErrCapabilityUnavailable
	}
	return binding, eng, nil
}

// endSpan records the outcome of a call. Blocked outcomes are not errors.
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, ErrBlocked):
		span.SetAttributes(attribute.Bool("db.blocked", true))
	default:
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
