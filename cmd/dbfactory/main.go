// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package main provides a command line tool for dbfactory databases.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mdhender/dbfactory"
	"github.com/mdhender/dbfactory/engine"
	"github.com/mdhender/dbfactory/internal/config"
	"github.com/mdhender/dbfactory/internal/otel"
	"github.com/mdhender/dbfactory/memengine"
	"github.com/mdhender/dbfactory/sqliteengine"
)

const usage = `usage: dbfactory [-dir DIR] [-timeout D] COMMAND

commands:
  list                  list databases and their versions
  open NAME [VERSION]   open (and create or upgrade) a database
  delete NAME           delete a database
  version               print the tool version`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "dbfactory")
	if err != nil {
		config.Exitf("Error: otel: %v", err)
	}

	err = run(ctx, os.Args[1:], os.Stdout)
	if serr := shutdown(context.Background()); serr != nil {
		fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", serr)
	}
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var sqliteCfg sqliteengine.Config
	if err := config.ParseEnv(&sqliteCfg); err != nil {
		return err
	}
	cfg, err := dbfactory.LoadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("dbfactory", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&sqliteCfg.Dir, "dir", sqliteCfg.Dir, "database directory (default $DBFACTORY_SQLITE_DIR)")
	timeout := fs.Duration("timeout", 30*time.Second, "give up on blocked requests after this long")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	src, err := newSource(sqliteCfg)
	if err != nil {
		return err
	}
	f := dbfactory.New(src, cfg)

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "list":
		return list(ctx, f, stdout)
	case "open":
		return open(ctx, f, rest, stdout)
	case "delete":
		return remove(ctx, f, rest, stdout)
	case "version":
		_, err := fmt.Fprintf(stdout, "%v\n", dbfactory.Version())
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// newSource binds the sqlite engine when a directory is configured and
// falls back to a process-local memory engine.
func newSource(cfg sqliteengine.Config) (*dbfactory.Source, error) {
	var platform dbfactory.Binding
	if cfg.Dir != "" {
		eng, err := sqliteengine.New(cfg, engine.Options{})
		if err != nil {
			return nil, err
		}
		platform = dbfactory.Static("sqlite", eng)
	}
	return dbfactory.NewSource(platform, dbfactory.Static("memory", memengine.New(engine.Options{}))), nil
}

func list(ctx context.Context, f *dbfactory.Factory, w io.Writer) error {
	dbs, err := f.Databases(ctx)
	if err != nil {
		return err
	}
	for _, db := range dbs {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", db.Name, db.Version); err != nil {
			return err
		}
	}
	return nil
}

func open(ctx context.Context, f *dbfactory.Factory, args []string, w io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("open: expected NAME [VERSION]")
	}
	var version uint64
	if len(args) == 2 {
		v, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil || v == 0 {
			return fmt.Errorf("open: invalid version %q", args[1])
		}
		version = v
	}

	conn, err := f.Open(ctx, args[0], version, func(ev *engine.Event) error {
		_, err := fmt.Fprintf(w, "upgrading %s from %d to %s\n", args[0], ev.OldVersion.Value, ev.NewVersion)
		return err
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = fmt.Fprintf(w, "%s\t%d\t%s\n", conn.Name(), conn.Version(), strings.Join(conn.ObjectStoreNames(), ","))
	return err
}

func remove(ctx context.Context, f *dbfactory.Factory, args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("delete: expected NAME")
	}
	res, err := f.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "deleted %s (was version %d)\n", args[0], res.OldVersion)
	return err
}
