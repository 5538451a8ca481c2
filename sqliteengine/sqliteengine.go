// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package sqliteengine provides a versioned storage engine that keeps each
// database in its own SQLite file.
//
// Files live in a single directory and are named after the database name
// with a .db extension. Bytes other than ASCII letters, digits, '.', '-'
// and '_' are written as ~XX. Each file records its version in a
// config table (key schema.version) and its object stores in an
// object_stores table. Files use WAL journaling, so deleting a database
// also removes the -wal and -shm sidecar files.
//
// This package supports two SQLite drivers via build tags:
//   - modernc.org/sqlite (default, pure Go, no CGO)
//   - github.com/mattn/go-sqlite3 (CGO, use -tags mattn and import the driver)
package sqliteengine

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mdhender/dbfactory/engine"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotDatabase is returned for .db files that lack the config table.
var ErrNotDatabase = errors.New("not a dbfactory database")

// Config holds engine configuration options.
type Config struct {
	// Dir holds the database files. It must be an absolute path to an
	// existing directory.
	Dir string `env:"DBFACTORY_SQLITE_DIR"`

	// Logger for operational logging. Uses slog.Default() if nil.
	Logger *slog.Logger

	// Timeout bounds each read, commit or drop. Default: 90s.
	Timeout time.Duration `env:"DBFACTORY_SQLITE_TIMEOUT"`
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	return cfg
}

// New returns an engine whose databases are stored under cfg.Dir.
func New(cfg Config, opts engine.Options) (*engine.Lifecycle, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = store.cfg.Logger
	}
	return engine.New(store, opts), nil
}

// Store is an engine.Backend on SQLite files.
type Store struct {
	cfg Config
}

func NewStore(cfg Config) (*Store, error) {
	cfg = cfg.defaults()
	if !filepath.IsAbs(cfg.Dir) {
		return nil, fmt.Errorf("%s: database directory must be absolute", cfg.Dir)
	}
	if !isDirectory(cfg.Dir) {
		return nil, fmt.Errorf("%s: database directory does not exist", cfg.Dir)
	}
	return &Store{cfg: cfg}, nil
}

// Path returns the file that holds database name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.cfg.Dir, encodeName(name)+".db")
}

func (s *Store) Load(ctx context.Context, name string) (engine.Schema, bool, error) {
	path := s.Path(name)
	if !fileExists(path) {
		return engine.Schema{}, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	db, err := s.open(ctx, path)
	if err != nil {
		return engine.Schema{}, false, err
	}
	defer db.Close()

	version, err := fetchSchemaVersion(ctx, db)
	if err != nil {
		return engine.Schema{}, false, err
	}
	if version == nil {
		return engine.Schema{}, false, fmt.Errorf("%s: %w", path, ErrNotDatabase)
	}

	stores, err := queryObjectStores(ctx, db)
	if err != nil {
		return engine.Schema{}, false, err
	}

	return engine.Schema{Name: name, Version: *version, ObjectStores: stores}, true, nil
}

func (s *Store) Commit(ctx context.Context, schema engine.Schema) error {
	path := s.Path(schema.Name)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if !fileExists(path) {
		s.cfg.Logger.Info("creating database", "name", schema.Name, "path", path)
	}

	db, err := s.open(ctx, path)
	if err != nil {
		return err
	}

	if err := commitSchema(ctx, db, schema, time.Now().UTC()); err != nil {
		db.Close()
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return db.Close()
}

// Drop removes a database file and its WAL sidecar files.
// Returns nil if the file does not exist.
func (s *Store) Drop(_ context.Context, name string) error {
	path := s.Path(name)
	if !fileExists(path) {
		return nil
	}

	var firstErr error
	for _, suffix := range []string{"", "-shm", "-wal"} {
		name := path + suffix
		if !fileExists(name) {
			continue
		}
		if !isRegularFile(name) {
			err := fmt.Errorf("%s: not a regular file", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return fmt.Errorf("delete %s: %w", path, firstErr)
	}

	if fileExists(path) {
		return fmt.Errorf("%s: still exists after delete", path)
	}

	s.cfg.Logger.Info("deleted database", "path", path)
	return nil
}

// List returns the databases in the directory ordered by name. Files that
// are not dbfactory databases are skipped.
func (s *Store) List(ctx context.Context) ([]engine.DatabaseInfo, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, err
	}

	var list []engine.DatabaseInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		name, err := decodeName(strings.TrimSuffix(e.Name(), ".db"))
		if err != nil {
			s.cfg.Logger.Debug("skipping file", "name", e.Name(), "error", err)
			continue
		}
		schema, ok, err := s.Load(ctx, name)
		if errors.Is(err, ErrNotDatabase) {
			s.cfg.Logger.Debug("skipping file", "name", e.Name())
			continue
		} else if err != nil {
			return nil, err
		}
		if ok {
			list = append(list, engine.DatabaseInfo{Name: schema.Name, Version: schema.Version})
		}
	}
	// os.ReadDir sorts by file name, which is not the database name order
	// once names are escaped.
	sortByName(list)
	return list, nil
}

// open opens a database file with the persistent pragmas.
func (s *Store) open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := buildDSN(path, persistentPragmas)
	s.cfg.Logger.Debug("opening database", "dsn", dsn)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// SQLite works best with limited connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// commitSchema writes schema to db in a single transaction.
func commitSchema(ctx context.Context, db *sql.DB, schema engine.Schema, now time.Time) error {
	sqlBytes, err := fs.ReadFile(schemaFS, "schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("exec schema.sql: %w", err)
	}

	ts := now.Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO config (key, value, created_at, updated_at)
		VALUES ('schema.version', ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, strconv.FormatUint(schema.Version, 10), ts, ts)
	if err != nil {
		return fmt.Errorf("set schema.version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO config (key, value, created_at, updated_at)
		VALUES ('db.created_at', ?, ?, ?)
	`, strconv.FormatInt(ts, 10), ts, ts)
	if err != nil {
		return fmt.Errorf("set db.created_at: %w", err)
	}

	existing, err := queryObjectStores(ctx, tx)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(schema.ObjectStores))
	for _, name := range schema.ObjectStores {
		keep[name] = true
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO object_stores (name, created_at) VALUES (?, ?)`, name, ts); err != nil {
			return fmt.Errorf("create object store %q: %w", name, err)
		}
	}
	for _, name := range existing {
		if keep[name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM object_stores WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete object store %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// fetchSchemaVersion returns the schema version from the config table.
// Returns nil if the table doesn't exist (uninitialized database).
func fetchSchemaVersion(ctx context.Context, db *sql.DB) (*uint64, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = 'schema.version'`).Scan(&value)
	if err != nil {
		if isNoSuchTable(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch schema.version: %w", err)
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid schema.version %q: %w", value, err)
	}
	return &v, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryObjectStores returns object store names in order.
func queryObjectStores(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM object_stores ORDER BY name`)
	if err != nil {
		if isNoSuchTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch object stores: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// isNoSuchTable checks if an error indicates a missing table.
func isNoSuchTable(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}
