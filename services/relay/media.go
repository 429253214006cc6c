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
	"regexp"
	"strings"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
)

// =============================================================================
// Pattern Definitions
// =============================================================================

var (
	// base64Pattern captures the payload after a "base64," marker, as
	// emitted inside data URIs and upstream markdown.
	base64Pattern = regexp.MustCompile(`base64,([A-Za-z0-9+/=]+)`)

	// urlPattern captures an https URL up to the first whitespace,
	// quote, or closing paren.
	urlPattern = regexp.MustCompile(`https://[^\s'")]+`)
)

// imageExtensions are the recognized image file suffixes for the URL
// heuristic, matched case-insensitively.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// apiFilesMarker is the upstream file-delivery path substring that marks
// a URL as an image reference regardless of extension.
const apiFilesMarker = "api/files"

// =============================================================================
// Extraction
// =============================================================================

// ExtractImages extracts zero or more image references from one event.
//
// # Description
//
// Extraction runs two independent passes and keeps everything both
// find, in discovery order:
//
//  1. Structured fields: a non-empty imageBase64 emits one base64 ref,
//     a non-empty imageUrl emits one url ref. Both may fire on the
//     same event.
//  2. Pattern scans over the event's text payload, run unconditionally
//     even when the structured fields already matched. Duplicates are
//     acceptable and expected; dropping them here would trade
//     robustness for tidiness.
//
// The URL scan only emits a ref when the match looks like an image:
// it must contain the upstream file-delivery path or end with a known
// image extension. This keeps ordinary links in answer text out of the
// image list.
//
// # Inputs
//
//   - ev: A classified stream event. Skip and sentinel events carry no
//     payload and yield nil.
//
// # Outputs
//
//   - []datatypes.ImageRef: Extracted refs in discovery order, or nil.
func ExtractImages(ev StreamEvent) []datatypes.ImageRef {
	var refs []datatypes.ImageRef

	if ev.Kind == EventObject {
		if ev.ImageBase64 != "" {
			refs = append(refs, datatypes.ImageRef{Type: datatypes.ImageKindBase64, Data: ev.ImageBase64})
		}
		if ev.ImageURL != "" {
			refs = append(refs, datatypes.ImageRef{Type: datatypes.ImageKindURL, Data: ev.ImageURL})
		}
	}

	if ev.Text == "" {
		return refs
	}

	if m := base64Pattern.FindStringSubmatch(ev.Text); m != nil {
		refs = append(refs, datatypes.ImageRef{Type: datatypes.ImageKindBase64, Data: m[1]})
	}
	if m := urlPattern.FindString(ev.Text); m != "" && looksLikeImageURL(m) {
		refs = append(refs, datatypes.ImageRef{Type: datatypes.ImageKindURL, Data: m})
	}
	return refs
}

// looksLikeImageURL reports whether a matched URL passes the image
// heuristic: upstream file path, or a recognized image extension.
func looksLikeImageURL(url string) bool {
	if strings.Contains(url, apiFilesMarker) {
		return true
	}
	lower := strings.ToLower(url)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
