// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRun_Lifecycle(t *testing.T) {
	t.Setenv("DBFACTORY_SQLITE_DIR", "")
	dir := t.TempDir()

	out, err := runCmd(t, "-dir", dir, "open", "library", "2")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !strings.Contains(out, "upgrading library from 0 to 2") {
		t.Errorf("expected upgrade message, got %q", out)
	}
	if !strings.Contains(out, "library\t2\t") {
		t.Errorf("expected version line, got %q", out)
	}

	// a fresh process-like run sees the committed version
	out, err = runCmd(t, "-dir", dir, "open", "library")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if strings.Contains(out, "upgrading") {
		t.Errorf("reopen should not upgrade, got %q", out)
	}

	out, err = runCmd(t, "-dir", dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if out != "library\t2\n" {
		t.Errorf("expected one database, got %q", out)
	}

	out, err = runCmd(t, "-dir", dir, "delete", "library")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if out != "deleted library (was version 2)\n" {
		t.Errorf("unexpected delete output %q", out)
	}

	out, err = runCmd(t, "-dir", dir, "list")
	if err != nil || out != "" {
		t.Errorf("expected empty list, got %q, %v", out, err)
	}
}

func TestRun_DirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DBFACTORY_SQLITE_DIR", dir)

	if _, err := runCmd(t, "open", "notes", "1"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	out, err := runCmd(t, "list")
	if err != nil || out != "notes\t1\n" {
		t.Errorf("expected notes at version 1, got %q, %v", out, err)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Setenv("DBFACTORY_SQLITE_DIR", "")

	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "missing command"},
		{"unknown command", []string{"frobnicate"}, "unknown command"},
		{"bad version", []string{"open", "db", "zero"}, "invalid version"},
		{"zero version", []string{"open", "db", "0"}, "invalid version"},
		{"delete arity", []string{"delete"}, "expected NAME"},
		{"relative dir", []string{"-dir", "relative", "list"}, "must be absolute"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCmd(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "0.1.0") {
		t.Errorf("expected version 0.1.0, got %q", out)
	}
}
