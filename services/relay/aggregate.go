// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import (
	"fmt"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
)

// aggregationState is the mutable per-request accumulation owned by one
// relay pass.
//
// # Description
//
// The state holds the two text channels, the discovered image refs,
// and the channel demultiplexing mode. It is created when the upstream
// stream opens and destroyed when the request completes on any path;
// it is never shared across requests or goroutines. When the tracker
// is nil (image-generation model) all text lands in the visible
// channel and the reasoning channel stays empty.
type aggregationState struct {
	visible   ChannelAccumulator
	reasoning ChannelAccumulator
	tracker   *modeTracker
	images    []datatypes.ImageRef
}

// newAggregationState allocates the two channel accumulators.
// trackModes disables <think> demultiplexing when false.
func newAggregationState(newAcc func() (ChannelAccumulator, error), trackModes bool) (*aggregationState, error) {
	visible, err := newAcc()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate visible channel: %w", err)
	}
	reasoning, err := newAcc()
	if err != nil {
		visible.Destroy()
		return nil, fmt.Errorf("failed to allocate reasoning channel: %w", err)
	}
	state := &aggregationState{
		visible:   visible,
		reasoning: reasoning,
	}
	if trackModes {
		state.tracker = newModeTracker()
	}
	return state, nil
}

// AppendFragment routes one raw token fragment through the mode
// tracker and normalizer into the active channel.
//
// The mode is read after marker stripping, so text following an
// opening marker inside the same fragment already lands under the new
// mode.
func (s *aggregationState) AppendFragment(fragment string) error {
	mode := ModeVisible
	if s.tracker != nil {
		fragment = s.tracker.Apply(fragment)
		mode = s.tracker.Mode()
	}
	token := NormalizeToken(fragment)
	if token == "" {
		return nil
	}
	if mode == ModeReasoning {
		return s.reasoning.Write(token)
	}
	return s.visible.Write(token)
}

// AddImages appends extracted refs, preserving discovery order.
func (s *aggregationState) AddImages(refs []datatypes.ImageRef) {
	s.images = append(s.images, refs...)
}

// Finalize extracts both channels and wipes their buffers.
func (s *aggregationState) Finalize() (visibleText, reasoningText string, err error) {
	visibleText, _, err = s.visible.Finalize()
	if err != nil {
		return "", "", fmt.Errorf("failed to finalize visible channel: %w", err)
	}
	reasoningText, _, err = s.reasoning.Finalize()
	if err != nil {
		return "", "", fmt.Errorf("failed to finalize reasoning channel: %w", err)
	}
	return visibleText, reasoningText, nil
}

// Destroy wipes both channels without returning data. Idempotent, so
// it is deferred on every relay path including after Finalize.
func (s *aggregationState) Destroy() {
	s.visible.Destroy()
	s.reasoning.Destroy()
}
