// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
	"github.com/AleutianAI/KyvexGateway/services/gateway/observability"
	"github.com/AleutianAI/KyvexGateway/services/relay"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var chatTracer = otel.Tracer("aleutian.gateway.handlers")

// missingPromptMessage is the client error returned when the prompt
// parameter is absent or empty.
const missingPromptMessage = "Missing 'prompt' parameter."

// requestParams unifies parameter lookup across the accepted inbound
// transports: query string on GET, JSON or form body on POST. A JSON
// body takes precedence over form fields, matching the documented
// client usage.
type requestParams struct {
	c    *gin.Context
	body map[string]any
}

func newRequestParams(c *gin.Context) requestParams {
	p := requestParams{c: c}
	// Only attempt the JSON decode on a JSON content type: binding
	// consumes the request body, which would starve the form parser.
	if c.Request.Method == http.MethodPost && strings.Contains(c.ContentType(), "json") {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err == nil {
			p.body = body
		}
	}
	return p
}

// Get returns the named parameter as a string, or "" when absent.
// JSON values keep their boolean/number forms on the wire, so non-string
// values are rendered to their string spelling before coercion.
func (p requestParams) Get(key string) string {
	if p.body != nil {
		v, ok := p.body[key]
		if !ok {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case bool:
			if t {
				return "true"
			}
			return "false"
		case float64:
			return fmt.Sprintf("%v", t)
		default:
			return ""
		}
	}
	if p.c.Request.Method == http.MethodPost {
		return p.c.PostForm(key)
	}
	return p.c.Query(key)
}

// parseBool coerces a string flag. Only the affirmative spellings
// "true", "1", "on" and "yes" (case-insensitive) are true; anything
// else, including absence, is false.
func parseBool(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// HandleChatRelay serves the main relay endpoint.
//
// # Description
//
// Parses the inbound parameters (GET query or POST JSON/form), resolves
// the model through the alias table, forwards the request to the relay
// client, and returns the aggregated result. The HTTP status mirrors
// the result shape: 200 for success, 500 for any relay failure, 400
// for a missing or oversized prompt.
//
// # Inputs
//
//   - client: The relay client to forward resolved requests through.
//
// # Outputs
//
//   - gin.HandlerFunc: The bound handler.
func HandleChatRelay(client relay.RelayClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChatRelay")
		defer span.End()

		params := newRequestParams(c)

		req := datatypes.ChatRequest{
			Prompt:        params.Get("prompt"),
			Model:         relay.ResolveModel(params.Get("model")),
			WebSearch:     parseBool(params.Get("web")),
			GenerateImage: parseBool(params.Get("image")),
			Reasoning:     parseBool(params.Get("reasoning")),
			AutoRoute:     parseBool(params.Get("auto")),
		}

		if req.Prompt == "" {
			recordRelayError(observability.ErrorClassValidation)
			c.JSON(http.StatusBadRequest, datatypes.NewFailureResult(0, missingPromptMessage))
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Rejected invalid chat request", "error", err)
			recordRelayError(observability.ErrorClassValidation)
			c.JSON(http.StatusBadRequest, datatypes.NewFailureResult(0,
				fmt.Sprintf("Invalid request: prompt exceeds %d bytes.", datatypes.MaxPromptBytes)))
			return
		}

		span.SetAttributes(
			attribute.String("relay.model", req.Model),
			attribute.Bool("relay.web_search", req.WebSearch),
			attribute.Bool("relay.generate_image", req.GenerateImage),
			attribute.Bool("relay.reasoning", req.Reasoning),
		)

		if m := observability.DefaultMetrics; m != nil {
			m.RelayStarted()
			defer m.RelayEnded()
		}

		start := time.Now()
		result := client.Relay(ctx, req)
		elapsed := time.Since(start)

		recordRelayResult(req.Model, result, elapsed)

		if !result.Success {
			span.SetStatus(codes.Error, result.Message)
			slog.Warn("Relay request failed",
				"model", req.Model,
				"error_code", result.ErrorCode,
				"message", result.Message)
			c.JSON(http.StatusInternalServerError, result)
			return
		}

		slog.Info("Relay request completed",
			"model", req.Model,
			"duration", elapsed,
			"images", len(result.Images))
		c.JSON(http.StatusOK, result)
	}
}

// recordRelayError increments the failure counter for one error class.
func recordRelayError(class observability.ErrorClass) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(class)
	}
}

// recordRelayResult records the outcome metrics for one relay call.
func recordRelayResult(model string, result *datatypes.ChatResult, elapsed time.Duration) {
	m := observability.DefaultMetrics
	if m == nil {
		return
	}

	m.RecordRequest(model, result.Success, elapsed.Seconds())

	if !result.Success {
		if result.ErrorCode != 0 {
			m.RecordError(observability.ErrorClassUpstreamStatus)
		} else {
			m.RecordError(observability.ErrorClassUpstreamError)
		}
		return
	}

	urls, inline := 0, 0
	for _, img := range result.Images {
		if img.Type == datatypes.ImageKindBase64 {
			inline++
		} else {
			urls++
		}
	}
	m.RecordImages(string(datatypes.ImageKindURL), urls)
	m.RecordImages(string(datatypes.ImageKindBase64), inline)
}
