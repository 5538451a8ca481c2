// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package memengine_test

import (
	"context"
	"slices"
	"testing"

	"github.com/mdhender/dbfactory/engine"
	"github.com/mdhender/dbfactory/memengine"
)

func TestStore_CommitLoad(t *testing.T) {
	ctx := context.Background()
	s := memengine.NewStore()

	if _, ok, err := s.Load(ctx, "db"); err != nil || ok {
		t.Fatalf("Load of missing database: ok=%v err=%v", ok, err)
	}

	stores := []string{"b", "a"}
	if err := s.Commit(ctx, engine.Schema{Name: "db", Version: 2, ObjectStores: stores}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	stores[0] = "mutated"

	got, ok, err := s.Load(ctx, "db")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2, got %d", got.Version)
	}
	if !slices.Equal(got.ObjectStores, []string{"a", "b"}) {
		t.Errorf("expected sorted private copy [a b], got %v", got.ObjectStores)
	}

	got.ObjectStores[0] = "mutated"
	again, _, _ := s.Load(ctx, "db")
	if again.ObjectStores[0] != "a" {
		t.Error("Load should return a copy of the object store names")
	}
}

func TestStore_ListOrderedByName(t *testing.T) {
	ctx := context.Background()
	s := memengine.NewStore()

	for i, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Commit(ctx, engine.Schema{Name: name, Version: uint64(i + 1)}); err != nil {
			t.Fatalf("Commit %s: %v", name, err)
		}
	}
	if err := s.Drop(ctx, "mid"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := s.Drop(ctx, "never-existed"); err != nil {
		t.Fatalf("Drop of missing database: %v", err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []engine.DatabaseInfo{{Name: "alpha", Version: 2}, {Name: "zeta", Version: 1}}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
