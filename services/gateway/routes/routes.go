// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the HTTP surface of the gateway.
package routes

import (
	"github.com/AleutianAI/KyvexGateway/services/gateway/handlers"
	"github.com/AleutianAI/KyvexGateway/services/relay"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers every gateway route on the router.
//
// The chat endpoint accepts both GET (query string) and POST
// (JSON or form body) so thin clients can call it from a URL bar.
func SetupRoutes(router *gin.Engine, relayClient relay.RelayClient) {
	router.GET("/", handlers.Index)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/models", handlers.ListModels())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/chat/get", handlers.HandleChatRelay(relayClient))
	router.POST("/chat/get", handlers.HandleChatRelay(relayClient))
}
