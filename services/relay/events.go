// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relay

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// streamDataPrefix is the SSE framing prefix stripped from each line.
	streamDataPrefix = "data:"

	// streamDoneSentinel is the literal terminal marker ending a stream.
	streamDoneSentinel = "[DONE]"

	// defaultUpstreamErrorMessage is used when an error-status event
	// carries no message field.
	defaultUpstreamErrorMessage = "Unknown upstream error"
)

// =============================================================================
// Stream Event Types
// =============================================================================

// EventKind identifies the variant of a classified stream line.
type EventKind int

const (
	// EventSkip marks a blank or comment line; the caller ignores it.
	EventSkip EventKind = iota

	// EventSentinel marks the terminal [DONE] frame; the caller must
	// stop reading immediately.
	EventSentinel

	// EventRaw marks a line that decoded to a plain JSON string, or
	// that failed structured decoding entirely. The payload is carried
	// verbatim so malformed lines are captured rather than dropped.
	EventRaw

	// EventObject marks a line that decoded to a JSON object with the
	// upstream's named fields.
	EventObject
)

// StreamEvent is one classified line of the upstream event stream.
//
// # Description
//
// StreamEvent is a closed tagged variant: exactly one EventKind applies
// and the caller switches on Kind rather than re-inspecting dynamic
// shapes at each call site. Events are transient; they exist only for
// the duration of one scan iteration and are never persisted.
//
// # Fields
//
//   - Kind: Variant discriminator.
//   - Text: Token payload. For EventObject this is the token field
//     (with precedence over content); for EventRaw the decoded string
//     or the verbatim fallback text.
//   - ImageURL: Optional structured image URL (EventObject only).
//   - ImageBase64: Optional structured base64 payload (EventObject only).
//   - ErrSignal: True when the object carried status=="error".
//   - ErrMessage: The upstream error message when ErrSignal is set.
type StreamEvent struct {
	Kind        EventKind
	Text        string
	ImageURL    string
	ImageBase64 string
	ErrSignal   bool
	ErrMessage  string
}

// structuredFrame is the decoded wire shape of one upstream JSON object.
// Token is a pointer so an explicit token field takes precedence over
// content even when it is the empty string.
type structuredFrame struct {
	Token       *string `json:"token"`
	Content     any     `json:"content"`
	ImageURL    string  `json:"imageUrl"`
	ImageBase64 string  `json:"imageBase64"`
	Status      string  `json:"status"`
	Message     string  `json:"message"`
}

// =============================================================================
// Classification
// =============================================================================

// ClassifyLine classifies one raw stream line into a StreamEvent.
//
// # Description
//
// ClassifyLine strips the stream framing ("data:" prefix, blank and
// comment lines, the [DONE] sentinel) and attempts a structured decode
// of the remainder. Decode failure is an expected branch, not an
// error: anything that is neither a JSON object nor a JSON string is
// classified as EventRaw with the pre-decode text verbatim, so no line
// is ever silently dropped. The function is deterministic, pure, and
// never fails.
//
// # Inputs
//
//   - raw: One line of the upstream response body.
//
// # Outputs
//
//   - StreamEvent: The classified event.
func ClassifyLine(raw string) StreamEvent {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, ":") {
		return StreamEvent{Kind: EventSkip}
	}
	if strings.HasPrefix(line, streamDataPrefix) {
		line = strings.TrimSpace(line[len(streamDataPrefix):])
	}
	if line == streamDoneSentinel {
		return StreamEvent{Kind: EventSentinel}
	}

	var decoded any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		// Malformed frame: keep it as best-effort raw text.
		return StreamEvent{Kind: EventRaw, Text: line}
	}

	switch v := decoded.(type) {
	case map[string]any:
		return classifyObject(line)
	case string:
		return StreamEvent{Kind: EventRaw, Text: v}
	default:
		// Numbers, booleans, arrays: fall back to the verbatim line.
		return StreamEvent{Kind: EventRaw, Text: line}
	}
}

// classifyObject maps a JSON object frame onto an EventObject.
//
// The line is known to hold an object, so the typed unmarshal cannot
// fail on shape; field type mismatches (e.g. a numeric token) degrade
// to the raw fallback like any other unexpected frame.
func classifyObject(line string) StreamEvent {
	var frame structuredFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return StreamEvent{Kind: EventRaw, Text: line}
	}

	ev := StreamEvent{
		Kind:        EventObject,
		ImageURL:    frame.ImageURL,
		ImageBase64: frame.ImageBase64,
	}

	if frame.Status == "error" {
		ev.ErrSignal = true
		ev.ErrMessage = frame.Message
		if ev.ErrMessage == "" {
			ev.ErrMessage = defaultUpstreamErrorMessage
		}
	}

	// token wins over content for the text payload.
	if frame.Token != nil {
		ev.Text = *frame.Token
	} else if s, ok := frame.Content.(string); ok {
		ev.Text = s
	}
	return ev
}
