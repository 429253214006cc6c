// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import "testing"

func TestNormalizeToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello", "hello"},
		{"literal_newline", `a\nb`, "a\nb"},
		{"literal_tab", `a\tb`, "a\tb"},
		{"wrapping_quotes", `"hi"`, "hi"},
		{"leading_quote_only", `"hi`, `"hi`},
		{"trailing_quote_only", `hi"`, `hi"`},
		{"escaped_quote", `say \"hi\"`, `say "hi"`},
		{"lone_quote", `"`, `"`},
		{"quote_pair_then_escapes", `"a\nb"`, "a\nb"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeToken(tc.in); got != tc.want {
				t.Errorf("NormalizeToken(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// TestNormalizeToken_Idempotent verifies that already-clean input is a
// fixed point of the normalizer.
func TestNormalizeToken_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"hello", "a\nb", "line\twith\ttabs", "mixed \"quotes\" inside"}
	for _, in := range inputs {
		once := NormalizeToken(in)
		twice := NormalizeToken(once)
		if once != twice {
			t.Errorf("NormalizeToken not idempotent on %q: %q != %q", in, once, twice)
		}
	}
}
