// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import "strings"

// NormalizeToken cleans a raw token fragment before it is appended to a
// text channel.
//
// # Description
//
// Upstream frames occasionally arrive with literal escape sequences and
// stray wrapping quotes left over from double-encoded JSON. Cleaning is
// applied in order:
//
//  1. literal \n and \t become real newline and tab characters
//  2. one wrapping quote pair is stripped, but only when the fragment
//     both starts and ends with a double quote
//  3. literal \" becomes a bare quote
//
// The function is pure and total: empty input yields empty output, and
// already-clean input passes through unchanged. It must never be run on
// raw image data.
func NormalizeToken(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ReplaceAll(raw, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}
