// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package memengine provides an in-memory versioned storage engine.
// Databases live as long as the engine value; nothing is written to disk.
package memengine

import (
	"context"
	"slices"
	"sync"

	"github.com/google/btree"
	"github.com/mdhender/dbfactory/engine"
)

// New returns an engine whose databases are kept in memory.
func New(opts engine.Options) *engine.Lifecycle {
	return engine.New(NewStore(), opts)
}

// Store is an in-memory engine.Backend. Schemas are kept in a B-tree
// ordered by database name.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[engine.Schema]
}

func NewStore() *Store {
	return &Store{
		tree: btree.NewG(32, func(a, b engine.Schema) bool {
			return a.Name < b.Name
		}),
	}
}

func (s *Store) Load(_ context.Context, name string) (engine.Schema, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.tree.Get(engine.Schema{Name: name})
	if !ok {
		return engine.Schema{}, false, nil
	}
	schema.ObjectStores = slices.Clone(schema.ObjectStores)
	return schema, true, nil
}

func (s *Store) Commit(_ context.Context, schema engine.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema.ObjectStores = slices.Clone(schema.ObjectStores)
	slices.Sort(schema.ObjectStores)
	s.tree.ReplaceOrInsert(schema)
	return nil
}

func (s *Store) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(engine.Schema{Name: name})
	return nil
}

func (s *Store) List(_ context.Context) ([]engine.DatabaseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]engine.DatabaseInfo, 0, s.tree.Len())
	s.tree.Ascend(func(schema engine.Schema) bool {
		list = append(list, engine.DatabaseInfo{Name: schema.Name, Version: schema.Version})
		return true
	})
	return list, nil
}
