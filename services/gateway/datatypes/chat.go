// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the gateway service.
//
// This file contains the request and result types for the relay chat
// endpoint. The result types mirror the upstream-facing wire shape:
// a success result carries meta/response/thought/images, a failure
// result carries an optional error code and a message.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxPromptBytes is the maximum size of a single prompt.
	// Checked in bytes (not runes) to bound request memory.
	MaxPromptBytes = 32 * 1024 // 32KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed MaxPromptBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Request Types
// =============================================================================

// ChatRequest is a fully resolved relay request.
//
// # Description
//
// ChatRequest carries the prompt, the canonical model slug, and the
// feature flags that are forwarded verbatim to the upstream streaming
// API. The model field holds the already-resolved identifier: the
// HTTP layer applies the alias table before constructing the request,
// so unknown inputs pass through unchanged as the literal model id.
//
// # Fields
//
//   - Prompt: Required. The user's input text, limited to 32KB.
//   - Model: Canonical model slug (e.g. "gpt-5", "kyvex").
//   - WebSearch: Enables upstream web search.
//   - GenerateImage: Enables upstream image generation.
//   - Reasoning: Enables the chain-of-thought channel.
//   - AutoRoute: Enables upstream automatic model routing.
//
// # Assumptions
//
//   - The request is immutable once constructed.
type ChatRequest struct {
	Prompt        string `json:"prompt" validate:"required,maxbytes"`
	Model         string `json:"model"`
	WebSearch     bool   `json:"webSearch"`
	GenerateImage bool   `json:"generateImage"`
	Reasoning     bool   `json:"reasoning"`
	AutoRoute     bool   `json:"autoRoute"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Image Reference Types
// =============================================================================

// ImageKind discriminates how an extracted image is carried.
type ImageKind string

const (
	// ImageKindURL marks an image referenced by an https URL.
	ImageKindURL ImageKind = "url"

	// ImageKindBase64 marks an image carried inline as base64 data.
	ImageKindBase64 ImageKind = "base64"
)

// ImageRef is a single extracted image reference.
//
// Discovery order is preserved and duplicates are kept: structured
// fields and the fallback pattern scans each append independently.
type ImageRef struct {
	Type ImageKind `json:"type"`
	Data string    `json:"data"`
}

// =============================================================================
// Result Types
// =============================================================================

// ResultMeta echoes the effective request flags on a success result.
type ResultMeta struct {
	Model          string `json:"model"`
	WebSearch      bool   `json:"web_search"`
	GeneratedImage bool   `json:"generated_image"`
	Reasoning      bool   `json:"reasoning"`
}

// ChatResult is the aggregated outcome of one relay request.
//
// # Description
//
// Exactly one of the two logical shapes is produced per request:
//
//   - success: Success=true, Meta set, Response/Thought trimmed,
//     Images non-nil (possibly empty).
//   - failure: Success=false, Message set, ErrorCode optionally set
//     (upstream HTTP status), content fields zero.
//
// Use NewSuccessResult / NewFailureResult rather than constructing the
// struct directly so the invariant holds.
//
// # Limitations
//
//   - There is no partial shape: an upstream error signal discards any
//     text accumulated before it.
type ChatResult struct {
	Success   bool        `json:"success"`
	Meta      *ResultMeta `json:"meta,omitempty"`
	Response  string      `json:"response"`
	Thought   string      `json:"thought"`
	Images    []ImageRef  `json:"images"`
	ErrorCode int         `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// NewSuccessResult builds a success-shaped ChatResult.
//
// Images is normalized to an empty slice so the JSON field is always
// an array, matching the upstream-facing contract.
func NewSuccessResult(meta ResultMeta, response, thought string, images []ImageRef) *ChatResult {
	if images == nil {
		images = []ImageRef{}
	}
	return &ChatResult{
		Success:  true,
		Meta:     &meta,
		Response: response,
		Thought:  thought,
		Images:   images,
	}
}

// NewFailureResult builds a failure-shaped ChatResult.
//
// errorCode carries the upstream HTTP status when the failure came from
// a non-200 transport response; pass 0 for connection-level or
// protocol-level failures and the field is omitted from the JSON.
func NewFailureResult(errorCode int, message string) *ChatResult {
	return &ChatResult{
		Success:   false,
		Images:    []ImageRef{},
		ErrorCode: errorCode,
		Message:   message,
	}
}
