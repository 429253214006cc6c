// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the gateway service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// serviceVersion is the advertised gateway version.
const serviceVersion = "1.0.0"

// HealthCheck is the liveness probe.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "kyvex-api-gateway",
	})
}

// Index serves the service banner with usage hints.
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "Online",
		"info":    "Kyvex Universal API Gateway",
		"version": serviceVersion,
		"endpoints": gin.H{
			"chat":   "/chat/get?prompt=hi&model=gpt-5",
			"models": "/models",
		},
		"usage": gin.H{
			"GET":  "?prompt=Your+text&model=gpt-5&web=true",
			"POST": gin.H{"prompt": "Your text", "model": "gpt-5", "web": true},
		},
	})
}
