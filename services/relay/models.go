// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package relay

import (
	"sort"
	"strings"
)

// DefaultModel is the canonical slug used when no model is requested.
const DefaultModel = "kyvex"

// ImageGenerationModel is the canonical slug of the dedicated image
// generation model. Requests resolving to it take the imagen-specific
// relay path.
const ImageGenerationModel = "gemini-imagen-4"

// modelAliases maps user-facing shorthand names and numeric ids to
// canonical upstream model slugs. Read-only after init; safe to share
// across requests.
var modelAliases = map[string]string{
	// Shortcuts / ids
	"1": "kyvex",
	"2": "claude-sonnet-4.5",
	"3": "gpt-5",
	"4": "gemini-2.5-pro",
	"5": "grok-4",
	"6": "gemini-imagen-4",
	// Name matching
	"kyvex":   "kyvex",
	"claude":  "claude-sonnet-4.5",
	"sonnet":  "claude-sonnet-4.5",
	"gpt5":    "gpt-5",
	"gpt-5":   "gpt-5",
	"gemini":  "gemini-2.5-pro",
	"grok":    "grok-4",
	"imagen":  "gemini-imagen-4",
	"default": "kyvex",
}

// ResolveModel resolves a free-form model input to a canonical slug.
//
// Lookup is case-insensitive. Empty input resolves to DefaultModel.
// Unresolved inputs pass through unchanged as the literal model id;
// the upstream may reject them, which surfaces as an upstream failure
// rather than a local validation error.
func ResolveModel(input string) string {
	if input == "" {
		return DefaultModel
	}
	key := strings.ToLower(strings.TrimSpace(input))
	if slug, ok := modelAliases[key]; ok {
		return slug
	}
	return key
}

// ModelAliases returns a copy of the alias table for the listing
// endpoint. The copy keeps the package-level map read-only.
func ModelAliases() map[string]string {
	out := make(map[string]string, len(modelAliases))
	for k, v := range modelAliases {
		out[k] = v
	}
	return out
}

// CanonicalModels returns the sorted set of distinct canonical slugs.
func CanonicalModels() []string {
	seen := make(map[string]struct{}, len(modelAliases))
	for _, slug := range modelAliases {
		seen[slug] = struct{}{}
	}
	models := make([]string, 0, len(seen))
	for slug := range seen {
		models = append(models, slug)
	}
	sort.Strings(models)
	return models
}
