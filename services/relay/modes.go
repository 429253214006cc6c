// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import "strings"

// =============================================================================
// Channel Modes
// =============================================================================

// ChannelMode selects which text channel a fragment lands in.
type ChannelMode int

const (
	// ModeVisible routes text to the user-visible answer channel.
	ModeVisible ChannelMode = iota

	// ModeReasoning routes text to the internal reasoning channel.
	ModeReasoning
)

const (
	thinkOpenMarker  = "<think>"
	thinkCloseMarker = "</think>"
)

// =============================================================================
// Mode Tracker
// =============================================================================

// modeTracker demultiplexes the token stream into the visible and
// reasoning channels across fragments.
//
// # Description
//
// The upstream marks reasoning spans with paired <think>/</think>
// markers that may open and close anywhere inside a token fragment.
// The tracker strips the markers and toggles the active mode: an
// opening marker switches to reasoning before the remaining fragment
// is routed, a closing marker reverts to visible. Both markers inside
// one fragment is legal and nets visible.
//
// Routing is fragment-granular: the whole stripped fragment is
// appended under whichever mode is active after marker stripping.
// Upstream tokens are sub-word sized in practice, so character-exact
// splitting within a fragment buys nothing.
//
// The tracker is owned by a single aggregation pass and is not safe
// for concurrent use.
type modeTracker struct {
	mode ChannelMode
}

// newModeTracker returns a tracker starting in the visible mode.
func newModeTracker() *modeTracker {
	return &modeTracker{mode: ModeVisible}
}

// Apply strips any mode markers from fragment, updates the active
// mode, and returns the cleaned fragment.
func (m *modeTracker) Apply(fragment string) string {
	if strings.Contains(fragment, thinkOpenMarker) {
		m.mode = ModeReasoning
		fragment = strings.ReplaceAll(fragment, thinkOpenMarker, "")
	}
	if strings.Contains(fragment, thinkCloseMarker) {
		m.mode = ModeVisible
		fragment = strings.ReplaceAll(fragment, thinkCloseMarker, "")
	}
	return fragment
}

// Mode returns the currently active channel mode.
func (m *modeTracker) Mode() ChannelMode {
	return m.mode
}
