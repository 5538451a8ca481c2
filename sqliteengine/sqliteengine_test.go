// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqliteengine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/mdhender/dbfactory/engine"
	"github.com/mdhender/dbfactory/sqliteengine"
)

func newStore(t *testing.T) (*sqliteengine.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := sqliteengine.NewStore(sqliteengine.Config{Dir: dir})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s, dir
}

// TestNewStore_RelativePath tests that relative directories are rejected.
func TestNewStore_RelativePath(t *testing.T) {
	_, err := sqliteengine.NewStore(sqliteengine.Config{Dir: "relative/dir"})
	if err == nil {
		t.Fatal("NewStore should reject relative paths")
	}
}

// TestNewStore_MissingDir tests that missing directories are rejected.
func TestNewStore_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nonexistent")
	_, err := sqliteengine.NewStore(sqliteengine.Config{Dir: dir})
	if err == nil {
		t.Fatal("NewStore should reject missing directories")
	}
}

// TestStore_CommitLoad tests that a committed schema can be read back.
func TestStore_CommitLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	if _, ok, err := s.Load(ctx, "library"); err != nil || ok {
		t.Fatalf("Load of missing database: ok=%v err=%v", ok, err)
	}

	err := s.Commit(ctx, engine.Schema{Name: "library", Version: 3, ObjectStores: []string{"books", "authors"}})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := os.Stat(s.Path("library")); err != nil {
		t.Fatalf("database file should exist: %v", err)
	}

	got, ok, err := s.Load(ctx, "library")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Version != 3 {
		t.Errorf("expected version 3, got %d", got.Version)
	}
	if !slices.Equal(got.ObjectStores, []string{"authors", "books"}) {
		t.Errorf("expected [authors books], got %v", got.ObjectStores)
	}

	// an upgrade that drops a store
	err = s.Commit(ctx, engine.Schema{Name: "library", Version: 4, ObjectStores: []string{"books"}})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	got, _, _ = s.Load(ctx, "library")
	if got.Version != 4 || !slices.Equal(got.ObjectStores, []string{"books"}) {
		t.Errorf("expected version 4 with [books], got %d with %v", got.Version, got.ObjectStores)
	}
}

// TestStore_Drop tests deleting a database and its sidecars.
func TestStore_Drop(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	if err := s.Commit(ctx, engine.Schema{Name: "db", Version: 1}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := s.Drop(ctx, "db"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	path := s.Path("db")
	for _, suffix := range []string{"", "-shm", "-wal"} {
		if _, err := os.Stat(path + suffix); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after drop", path+suffix)
		}
	}

	if err := s.Drop(ctx, "db"); err != nil {
		t.Fatalf("Drop of missing database should succeed: %v", err)
	}
}

// TestStore_List tests listing with escaped names and foreign files.
func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s, dir := newStore(t)

	for i, name := range []string{"b/slash", "a b", "plain"} {
		if err := s.Commit(ctx, engine.Schema{Name: name, Version: uint64(i + 1)}); err != nil {
			t.Fatalf("Commit %q failed: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.db"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []engine.DatabaseInfo{
		{Name: "a b", Version: 2},
		{Name: "b/slash", Version: 1},
		{Name: "plain", Version: 3},
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, _, err := s.Load(ctx, "empty"); !errors.Is(err, sqliteengine.ErrNotDatabase) {
		t.Errorf("expected ErrNotDatabase for an empty file, got %v", err)
	}
}

// TestEngine_PersistsAcrossInstances tests that versions survive a new engine.
func TestEngine_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteengine.Config{Dir: dir}

	eng, err := sqliteengine.New(cfg, engine.Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	conn := open(t, eng, "library", 2, func(ev *engine.Event) error {
		return ev.Tx.CreateObjectStore("books")
	})
	conn.Close()

	eng, err = sqliteengine.New(cfg, engine.Options{})
	if err != nil {
		t.Fatalf("second New failed: %v", err)
	}
	conn = open(t, eng, "library", 0, func(*engine.Event) error {
		t.Error("reopening the current version should not upgrade")
		return nil
	})
	defer conn.Close()

	if conn.Version() != 2 {
		t.Errorf("expected version 2, got %d", conn.Version())
	}
	if got := conn.ObjectStoreNames(); !slices.Equal(got, []string{"books"}) {
		t.Errorf("expected [books], got %v", got)
	}
}

func open(t *testing.T, eng engine.Engine, name string, version uint64, upgrade engine.UpgradeHandler) engine.Conn {
	t.Helper()
	done := make(chan *engine.Event, 1)
	req := engine.NewRequest()
	req.OnSuccess(func(ev *engine.Event) { done <- ev })
	req.OnError(func(ev *engine.Event) {
		ev.PreventDefault()
		done <- ev
	})
	req.OnUpgradeNeeded(upgrade)
	if version == 0 {
		eng.Open(req, name)
	} else {
		eng.OpenVersion(req, name, version)
	}

	select {
	case ev := <-done:
		if ev.Err != nil {
			t.Fatalf("open %s: %v", name, ev.Err)
		}
		return ev.Result
	case <-time.After(10 * time.Second):
		t.Fatal("open timed out")
		return nil
	}
}
