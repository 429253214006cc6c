// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring relayed chat
// and image generation requests. Metrics include:
//   - Request counters (by model and status)
//   - Relay latency histograms (full upstream round trip)
//   - Active relay gauges
//   - Error counters (by error class)
//   - Extracted image counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for relay metrics
const relaySubsystem = "relay"

// RelayMetrics holds all Prometheus metrics for relayed requests.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring relay
// performance. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of relay requests by model and status
//   - RelayDurationSeconds: Histogram of full relay round-trip duration
//   - ActiveRelays: Gauge of in-flight upstream relays
//   - ErrorsTotal: Counter of errors by class
//   - ImagesExtractedTotal: Counter of image references extracted
//
// # Thread Safety
//
// All operations are thread-safe.
type RelayMetrics struct {
	// RequestsTotal counts relay requests by model and status.
	// Labels: model (canonical slug), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RelayDurationSeconds measures the full upstream round trip,
	// request out to aggregated result.
	// Labels: model, status (success, error)
	RelayDurationSeconds *prometheus.HistogramVec

	// ActiveRelays tracks in-flight upstream relays.
	ActiveRelays prometheus.Gauge

	// ErrorsTotal counts failures by class.
	// Labels: error_class (validation, upstream_status, upstream_error)
	ErrorsTotal *prometheus.CounterVec

	// ImagesExtractedTotal counts extracted image references.
	// Labels: type (url, base64)
	ImagesExtractedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of RelayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RelayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *RelayMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *RelayMetrics {
	DefaultMetrics = &RelayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "requests_total",
				Help:      "Total number of relay requests by model and status",
			},
			[]string{"model", "status"},
		),

		RelayDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "duration_seconds",
				Help:      "Full relay round-trip duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model", "status"},
		),

		ActiveRelays: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "active_relays",
				Help:      "Number of in-flight upstream relays",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "errors_total",
				Help:      "Total relay failures by error class",
			},
			[]string{"error_class"},
		),

		ImagesExtractedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "images_extracted_total",
				Help:      "Total image references extracted from upstream streams",
			},
			[]string{"type"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Classes
// =============================================================================

// ErrorClass represents a categorized failure type for metrics.
type ErrorClass string

const (
	// ErrorClassValidation indicates request validation failure.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassUpstreamStatus indicates a non-200 upstream response.
	ErrorClassUpstreamStatus ErrorClass = "upstream_status"

	// ErrorClassUpstreamError indicates a mid-stream error signal or a
	// connection-level fault. The relay reports both without an HTTP
	// status code, so they share one class.
	ErrorClassUpstreamError ErrorClass = "upstream_error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records one completed relay request.
//
// # Inputs
//
//   - model: The canonical model slug that served the request.
//   - success: Whether the relay produced a success result.
//   - seconds: Full round-trip duration in seconds.
func (m *RelayMetrics) RecordRequest(model string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(model, status).Inc()
	m.RelayDurationSeconds.WithLabelValues(model, status).Observe(seconds)
}

// RecordError records one relay failure by class.
//
// # Inputs
//
//   - class: The failure class.
func (m *RelayMetrics) RecordError(class ErrorClass) {
	m.ErrorsTotal.WithLabelValues(string(class)).Inc()
}

// RecordImages records extracted image references by type.
//
// # Inputs
//
//   - imageType: "url" or "base64".
//   - count: Number of references extracted.
func (m *RelayMetrics) RecordImages(imageType string, count int) {
	if count > 0 {
		m.ImagesExtractedTotal.WithLabelValues(imageType).Add(float64(count))
	}
}

// RelayStarted increments the active relay gauge.
func (m *RelayMetrics) RelayStarted() {
	m.ActiveRelays.Inc()
}

// RelayEnded decrements the active relay gauge.
func (m *RelayMetrics) RelayEnded() {
	m.ActiveRelays.Dec()
}
