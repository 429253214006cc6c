// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import "testing"

func TestClassifyLine_Framing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want EventKind
	}{
		{"blank", "", EventSkip},
		{"whitespace_only", "   ", EventSkip},
		{"comment", ": keepalive", EventSkip},
		{"sentinel", "[DONE]", EventSentinel},
		{"sentinel_with_prefix", "data: [DONE]", EventSentinel},
		{"sentinel_padded", "  data:   [DONE]  ", EventSentinel},
		{"plain_text", "hello", EventRaw},
		{"object", `{"token":"hi"}`, EventObject},
		{"object_with_prefix", `data: {"token":"hi"}`, EventObject},
		{"json_string", `"hi"`, EventRaw},
		{"json_number", "42", EventRaw},
		{"json_array", `["a","b"]`, EventRaw},
		{"malformed", `{"token": `, EventRaw},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyLine(tc.in); got.Kind != tc.want {
				t.Errorf("ClassifyLine(%q).Kind = %v, want %v", tc.in, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyLine_TokenPrecedence(t *testing.T) {
	t.Parallel()

	ev := ClassifyLine(`{"token":"tok","content":"con"}`)
	if ev.Kind != EventObject {
		t.Fatalf("expected EventObject, got %v", ev.Kind)
	}
	if ev.Text != "tok" {
		t.Errorf("token should win over content, got %q", ev.Text)
	}

	// An explicit empty token still wins.
	ev = ClassifyLine(`{"token":"","content":"con"}`)
	if ev.Text != "" {
		t.Errorf("empty token should win over content, got %q", ev.Text)
	}

	ev = ClassifyLine(`{"content":"con"}`)
	if ev.Text != "con" {
		t.Errorf("content should be used when token absent, got %q", ev.Text)
	}

	// Non-string content is ignored rather than coerced.
	ev = ClassifyLine(`{"content":[1,2]}`)
	if ev.Kind != EventObject || ev.Text != "" {
		t.Errorf("non-string content should yield empty text, got kind=%v text=%q", ev.Kind, ev.Text)
	}
}

func TestClassifyLine_ImageFields(t *testing.T) {
	t.Parallel()

	ev := ClassifyLine(`{"token":"x","imageUrl":"https://x/api/files/1.png","imageBase64":"QUJD"}`)
	if ev.ImageURL != "https://x/api/files/1.png" {
		t.Errorf("unexpected ImageURL: %q", ev.ImageURL)
	}
	if ev.ImageBase64 != "QUJD" {
		t.Errorf("unexpected ImageBase64: %q", ev.ImageBase64)
	}
}

func TestClassifyLine_ErrorSignal(t *testing.T) {
	t.Parallel()

	ev := ClassifyLine(`data: {"status":"error","message":"rate limited"}`)
	if !ev.ErrSignal {
		t.Fatal("expected ErrSignal")
	}
	if ev.ErrMessage != "rate limited" {
		t.Errorf("unexpected ErrMessage: %q", ev.ErrMessage)
	}

	// Missing message falls back to the generic text.
	ev = ClassifyLine(`{"status":"error"}`)
	if !ev.ErrSignal || ev.ErrMessage != defaultUpstreamErrorMessage {
		t.Errorf("expected default error message, got signal=%v msg=%q", ev.ErrSignal, ev.ErrMessage)
	}

	// Non-error status is not a signal.
	ev = ClassifyLine(`{"status":"ok","token":"hi"}`)
	if ev.ErrSignal {
		t.Error("status ok must not signal an error")
	}
}

// TestClassifyLine_RawFallbackKeepsVerbatimText verifies that malformed
// frames are captured, not dropped.
func TestClassifyLine_RawFallbackKeepsVerbatimText(t *testing.T) {
	t.Parallel()

	ev := ClassifyLine(`data: {"token": oops}`)
	if ev.Kind != EventRaw {
		t.Fatalf("expected EventRaw, got %v", ev.Kind)
	}
	if ev.Text != `{"token": oops}` {
		t.Errorf("raw fallback should keep the post-framing text, got %q", ev.Text)
	}
}

func TestClassifyLine_JSONStringDecoded(t *testing.T) {
	t.Parallel()

	ev := ClassifyLine(`data: "hi\nthere"`)
	if ev.Kind != EventRaw {
		t.Fatalf("expected EventRaw, got %v", ev.Kind)
	}
	if ev.Text != "hi\nthere" {
		t.Errorf("JSON string payload should be decoded, got %q", ev.Text)
	}
}
