// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relay implements the stream aggregation engine: it forwards
// a resolved chat request to the upstream streaming API, consumes the
// line-oriented event stream, demultiplexes visible answer text from
// internal reasoning, extracts embedded image references, and returns
// one aggregated result per request.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.relay.kyvex")

// =============================================================================
// Constants
// =============================================================================

const (
	// defaultStreamURL is the upstream streaming endpoint.
	defaultStreamURL = "https://kyvex.ai/api/v1/ai/stream"

	// defaultStreamTimeout bounds one full upstream exchange: connect,
	// response, and stream completion. Exceeding it surfaces as a
	// failure result, never a hang.
	defaultStreamTimeout = 120 * time.Second

	// errorExcerptBytes caps the upstream body excerpt carried in a
	// non-200 failure result.
	errorExcerptBytes = 300

	// maxStreamLineBytes is the scanner line limit. Image frames carry
	// inline base64 payloads far beyond bufio's 64KB default.
	maxStreamLineBytes = 10 * 1024 * 1024

	// browserUserAgent mimics the browser client the upstream expects.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

// =============================================================================
// Client
// =============================================================================

// KyvexClient relays requests to the Kyvex streaming API.
//
// Stateless across requests: the only shared members are the HTTP
// client and configuration, both read-only after construction, so one
// client serves concurrent requests. All per-request accumulation
// lives in an aggregationState owned by a single Relay call.
type KyvexClient struct {
	httpClient     *http.Client
	streamURL      string
	newAccumulator func() (ChannelAccumulator, error)
}

// kyvexStreamRequest is the upstream request body. InputAudio and
// Files are always sent, empty, to match the expected wire shape.
type kyvexStreamRequest struct {
	Prompt        string   `json:"prompt"`
	Model         string   `json:"model"`
	WebSearch     bool     `json:"webSearch"`
	GenerateImage bool     `json:"generateImage"`
	Reasoning     bool     `json:"reasoning"`
	AutoRoute     bool     `json:"autoRoute"`
	InputAudio    string   `json:"inputAudio"`
	Files         []string `json:"files"`
}

// NewKyvexClient creates a relay client from the environment.
//
// KYVEX_STREAM_URL overrides the upstream endpoint and
// KYVEX_TIMEOUT_SECONDS the request deadline; both have working
// defaults so the gateway runs with zero configuration.
func NewKyvexClient() (*KyvexClient, error) {
	streamURL := os.Getenv("KYVEX_STREAM_URL")
	if streamURL == "" {
		streamURL = defaultStreamURL
	}
	streamURL = strings.TrimSuffix(streamURL, "/")

	timeout := defaultStreamTimeout
	if raw := os.Getenv("KYVEX_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid KYVEX_TIMEOUT_SECONDS %q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}

	slog.Info("Initializing Kyvex relay client", "stream_url", streamURL, "timeout", timeout)
	return &KyvexClient{
		httpClient:     &http.Client{Timeout: timeout},
		streamURL:      streamURL,
		newAccumulator: NewChannelAccumulator,
	}, nil
}

// =============================================================================
// Relay
// =============================================================================

// Relay forwards one resolved request upstream and aggregates the
// event stream into a single result.
//
// # Description
//
// The request's model must already be resolved through the alias
// table. The image-generation model takes a dedicated path: a minimal
// fixed payload (prompt only, image generation forced on, every other
// flag off) and no reasoning demultiplexing. Every other model goes
// through the full pipeline.
//
// Relay never returns a Go error; see RelayClient.
func (k *KyvexClient) Relay(ctx context.Context, req datatypes.ChatRequest) *datatypes.ChatResult {
	ctx, span := tracer.Start(ctx, "KyvexClient.Relay")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.model", req.Model),
		attribute.Bool("relay.reasoning", req.Reasoning),
		attribute.Bool("relay.generate_image", req.GenerateImage),
	)

	var payload kyvexStreamRequest
	trackModes := true
	if req.Model == ImageGenerationModel {
		// Imagen accepts only the pinned payload shape; the reasoning
		// channel does not apply to image generation.
		payload = kyvexStreamRequest{
			Prompt:        req.Prompt,
			Model:         ImageGenerationModel,
			GenerateImage: true,
			InputAudio:    "",
			Files:         []string{},
		}
		trackModes = false
	} else {
		payload = kyvexStreamRequest{
			Prompt:        req.Prompt,
			Model:         req.Model,
			WebSearch:     req.WebSearch,
			GenerateImage: req.GenerateImage,
			Reasoning:     req.Reasoning,
			AutoRoute:     req.AutoRoute,
			InputAudio:    "",
			Files:         []string{},
		}
	}

	result := k.streamAndAggregate(ctx, payload, trackModes)
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	return result
}

// streamAndAggregate opens the upstream stream and drives the
// classify/extract/normalize pipeline line by line.
func (k *KyvexClient) streamAndAggregate(ctx context.Context, payload kyvexStreamRequest,
	trackModes bool) *datatypes.ChatResult {

	meta := datatypes.ResultMeta{
		Model:          payload.Model,
		WebSearch:      payload.WebSearch,
		GeneratedImage: payload.GenerateImage,
		Reasoning:      payload.Reasoning,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return datatypes.NewFailureResult(0, fmt.Sprintf("failed to encode upstream request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.streamURL, bytes.NewBuffer(body))
	if err != nil {
		return datatypes.NewFailureResult(0, fmt.Sprintf("failed to create upstream request: %v", err))
	}
	setUpstreamHeaders(httpReq)

	// Fresh correlation id per request so the upstream never folds two
	// relayed conversations together. Not an authentication credential.
	httpReq.AddCookie(&http.Cookie{
		Name:  "browserId",
		Value: fmt.Sprintf("BRWS-%x", [16]byte(uuid.New())),
	})

	resp, err := k.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Kyvex upstream call failed", "error", err)
		return datatypes.NewFailureResult(0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt := readBodyExcerpt(resp.Body)
		slog.Error("Kyvex upstream returned an error",
			"status_code", resp.StatusCode, "response", excerpt)
		return datatypes.NewFailureResult(resp.StatusCode, excerpt)
	}

	agg, err := newAggregationState(k.newAccumulator, trackModes)
	if err != nil {
		return datatypes.NewFailureResult(0, err.Error())
	}
	defer agg.Destroy()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

scan:
	for scanner.Scan() {
		ev := ClassifyLine(scanner.Text())
		switch ev.Kind {
		case EventSkip:
			continue
		case EventSentinel:
			// Terminal marker: stop reading immediately, even with
			// more input buffered.
			break scan
		}

		if ev.ErrSignal {
			// Error wins: partial accumulation is discarded (wiped by
			// the deferred Destroy).
			slog.Warn("Upstream signaled an error mid-stream", "message", ev.ErrMessage)
			return datatypes.NewFailureResult(0, ev.ErrMessage)
		}

		agg.AddImages(ExtractImages(ev))

		if err := agg.AppendFragment(ev.Text); err != nil {
			return datatypes.NewFailureResult(0, err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		// Read fault mid-stream, including deadline and cancellation.
		return datatypes.NewFailureResult(0, err.Error())
	}

	// Exhaustion without an error signal is a success with whatever
	// accumulated, sentinel or not.
	visible, thought, err := agg.Finalize()
	if err != nil {
		return datatypes.NewFailureResult(0, err.Error())
	}
	return datatypes.NewSuccessResult(meta,
		strings.TrimSpace(visible), strings.TrimSpace(thought), agg.images)
}

// =============================================================================
// Helpers
// =============================================================================

// setUpstreamHeaders applies the browser-like header set the upstream
// expects from its own web client.
func setUpstreamHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://kyvex.ai/")
	req.Header.Set("User-Agent", browserUserAgent)
}

// readBodyExcerpt returns a truncated excerpt of an error response body.
func readBodyExcerpt(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, errorExcerptBytes))
	if err != nil {
		return ""
	}
	return string(b)
}
