// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqliteengine

import "testing"

func TestEncodeName_RoundTrip(t *testing.T) {
	for _, name := range []string{"plain", "a b", "b/slash", "100%", "~tilde", "..", "ünïcode", "q?x#y"} {
		encoded := encodeName(name)
		for i := 0; i < len(encoded); i++ {
			if c := encoded[i]; c != '~' && !isSafe(c) {
				t.Errorf("encodeName(%q) = %q contains %q", name, encoded, c)
			}
		}
		got, err := decodeName(encoded)
		if err != nil || got != name {
			t.Errorf("decodeName(%q) = %q, %v; want %q", encoded, got, err, name)
		}
	}
}

func TestDecodeName_Invalid(t *testing.T) {
	for _, s := range []string{"a~4", "a~ZZ", "a b"} {
		if _, err := decodeName(s); err == nil {
			t.Errorf("decodeName(%q): expected error", s)
		}
	}
}
