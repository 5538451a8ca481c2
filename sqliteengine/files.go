// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqliteengine

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mdhender/dbfactory/engine"
)

// File system helpers

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() || info.IsDir()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func sortByName(list []engine.DatabaseInfo) {
	slices.SortFunc(list, func(a, b engine.DatabaseInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// encodeName maps a database name to a file name that needs no escaping
// in a SQLite URI.
func encodeName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isSafe(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "~%02X", c)
		}
	}
	return sb.String()
}

func decodeName(s string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '~' {
			if !isSafe(c) {
				return "", fmt.Errorf("%q: unexpected byte %q", s, c)
			}
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("%q: truncated escape", s)
		}
		b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("%q: invalid escape: %w", s, err)
		}
		sb.WriteByte(byte(b))
		i += 2
	}
	return sb.String(), nil
}

func isSafe(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '.' || c == '-' || c == '_'
}
