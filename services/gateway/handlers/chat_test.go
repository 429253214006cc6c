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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AleutianAI/KyvexGateway/services/gateway/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// MockRelayClient implements relay.RelayClient for handler testing.
type MockRelayClient struct {
	Result      *datatypes.ChatResult
	LastRequest datatypes.ChatRequest
}

func (m *MockRelayClient) Relay(ctx context.Context, req datatypes.ChatRequest) *datatypes.ChatResult {
	m.LastRequest = req
	return m.Result
}

// createTestRouter creates a Gin router with the chat handler mounted
// on both methods, matching the production route table.
func createTestRouter(mock *MockRelayClient) *gin.Engine {
	router := gin.New()
	router.GET("/chat/get", HandleChatRelay(mock))
	router.POST("/chat/get", HandleChatRelay(mock))
	return router
}

// performJSON executes a JSON POST against the test router.
func performJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	jsonBytes, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBytes))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// performGET executes a GET against the test router.
func performGET(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func successResult() *datatypes.ChatResult {
	return datatypes.NewSuccessResult(
		datatypes.ResultMeta{Model: "kyvex"}, "hi there", "", nil)
}

// =============================================================================
// HandleChatRelay Tests
// =============================================================================

// TestHandleChatRelay_GetSuccess verifies a GET query-string request
// reaches the relay and returns the aggregated result.
func TestHandleChatRelay_GetSuccess(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performGET(router, "/chat/get?prompt=hello&model=claude&web=true&reasoning=yes")

	require.Equal(t, http.StatusOK, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "hi there", result.Response)

	assert.Equal(t, "hello", mock.LastRequest.Prompt)
	assert.Equal(t, "claude-sonnet-4.5", mock.LastRequest.Model, "alias should be resolved")
	assert.True(t, mock.LastRequest.WebSearch)
	assert.True(t, mock.LastRequest.Reasoning, "'yes' should coerce to true")
	assert.False(t, mock.LastRequest.GenerateImage)
	assert.False(t, mock.LastRequest.AutoRoute)
}

// TestHandleChatRelay_PostJSON verifies JSON bodies are accepted with
// native boolean flags.
func TestHandleChatRelay_PostJSON(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performJSON(router, "/chat/get", map[string]any{
		"prompt": "paint a fox",
		"model":  "imagen",
		"image":  true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paint a fox", mock.LastRequest.Prompt)
	assert.Equal(t, "gemini-imagen-4", mock.LastRequest.Model)
	assert.True(t, mock.LastRequest.GenerateImage)
}

// TestHandleChatRelay_PostForm verifies form-encoded bodies are accepted.
func TestHandleChatRelay_PostForm(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	form := url.Values{}
	form.Set("prompt", "form prompt")
	form.Set("model", "3")
	form.Set("auto", "on")

	req, _ := http.NewRequest(http.MethodPost, "/chat/get",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "form prompt", mock.LastRequest.Prompt)
	assert.Equal(t, "gpt-5", mock.LastRequest.Model, "numeric id should resolve")
	assert.True(t, mock.LastRequest.AutoRoute, "'on' should coerce to true")
}

// TestHandleChatRelay_MissingPrompt verifies the client error contract.
func TestHandleChatRelay_MissingPrompt(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	for _, w := range []*httptest.ResponseRecorder{
		performGET(router, "/chat/get"),
		performGET(router, "/chat/get?prompt="),
		performJSON(router, "/chat/get", map[string]any{"model": "kyvex"}),
	} {
		require.Equal(t, http.StatusBadRequest, w.Code)

		var result datatypes.ChatResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.False(t, result.Success)
		assert.Equal(t, "Missing 'prompt' parameter.", result.Message)
	}
	assert.Empty(t, mock.LastRequest.Prompt, "relay must not be invoked without a prompt")
}

// TestHandleChatRelay_OversizedPrompt verifies the size limit rejection.
func TestHandleChatRelay_OversizedPrompt(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performJSON(router, "/chat/get", map[string]any{
		"prompt": strings.Repeat("a", datatypes.MaxPromptBytes+1),
	})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Invalid request")
}

// TestHandleChatRelay_RelayFailure verifies failures map to 500 with
// the failure-shaped body passed through.
func TestHandleChatRelay_RelayFailure(t *testing.T) {
	mock := &MockRelayClient{
		Result: datatypes.NewFailureResult(http.StatusBadGateway, "upstream exploded"),
	}
	router := createTestRouter(mock)

	w := performGET(router, "/chat/get?prompt=hello")

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadGateway, result.ErrorCode)
	assert.Equal(t, "upstream exploded", result.Message)
}

// TestHandleChatRelay_DefaultModel verifies the default model applies
// when no model parameter is sent.
func TestHandleChatRelay_DefaultModel(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performGET(router, "/chat/get?prompt=hello")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kyvex", mock.LastRequest.Model)
}

// TestHandleChatRelay_UnknownModelPassesThrough verifies unresolved
// model names are forwarded as-is.
func TestHandleChatRelay_UnknownModelPassesThrough(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performGET(router, "/chat/get?prompt=hello&model=somefuturemodel")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "somefuturemodel", mock.LastRequest.Model)
}

// =============================================================================
// Parameter Coercion Tests
// =============================================================================

// TestParseBool covers the accepted affirmative spellings.
func TestParseBool(t *testing.T) {
	trueCases := []string{"true", "TRUE", "True", "1", "on", "ON", "yes", "YES"}
	for _, v := range trueCases {
		assert.True(t, parseBool(v), "parseBool(%q)", v)
	}

	falseCases := []string{"", "false", "0", "off", "no", "enabled", "t", "y"}
	for _, v := range falseCases {
		assert.False(t, parseBool(v), "parseBool(%q)", v)
	}
}

// TestRequestParams_JSONValueForms verifies JSON booleans and numbers
// coerce like their string spellings.
func TestRequestParams_JSONValueForms(t *testing.T) {
	mock := &MockRelayClient{Result: successResult()}
	router := createTestRouter(mock)

	w := performJSON(router, "/chat/get", map[string]any{
		"prompt":    "hello",
		"web":       true,
		"reasoning": 1,
		"image":     false,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.LastRequest.WebSearch, "JSON true should coerce")
	assert.True(t, mock.LastRequest.Reasoning, "JSON 1 should coerce")
	assert.False(t, mock.LastRequest.GenerateImage, "JSON false stays false")
}
