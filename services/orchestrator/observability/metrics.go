// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for the forecast service.
// Metrics include:
//   - Request counters (by endpoint and status)
//   - Forecast run outcomes and durations
//   - Oracle attempt results (valid, invalid, oracle_error)
//   - Rate-limit rejections and profiled CSV rows
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for forecast metrics
const forecastSubsystem = "horizon"

// ForecastMetrics holds all Prometheus metrics for the forecast service.
//
// # Description
//
// Provides counters and histograms for monitoring forecast runs. Create one
// per registry via NewForecastMetrics. ForecastMetrics satisfies the
// forecast.Recorder interface, so a pipeline reports into it directly.
//
// # Fields
//
//   - RequestsTotal: Counter of HTTP requests by endpoint and status
//   - RunsTotal: Counter of forecast runs by status and error kind
//   - RunDurationSeconds: Histogram of end-to-end run duration
//   - OracleAttemptsTotal: Counter of oracle attempts by result
//   - RateLimitedTotal: Counter of requests rejected by the limiter
//   - ProfiledRowsTotal: Counter of CSV rows accepted by the profiler
//
// # Thread Safety
//
// All operations are thread-safe.
type ForecastMetrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: endpoint (forecast, sensor_forecast, profile), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RunsTotal counts forecast runs.
	// Labels: status (success, error), error_kind (request_shape, oracle, ...)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures pipeline duration.
	// Labels: status (success, error)
	RunDurationSeconds *prometheus.HistogramVec

	// OracleAttemptsTotal counts individual oracle calls.
	// Labels: result (valid, invalid, oracle_error)
	OracleAttemptsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected with 429.
	// Labels: endpoint
	RateLimitedTotal *prometheus.CounterVec

	// ProfiledRowsTotal counts rows accepted by the CSV profiler.
	ProfiledRowsTotal prometheus.Counter
}

// NewForecastMetrics creates and registers all metrics on reg.
//
// # Description
//
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests so instances never collide.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewForecastMetrics(reg prometheus.Registerer) *ForecastMetrics {
	factory := promauto.With(reg)
	return &ForecastMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "forecast_runs_total",
				Help:      "Total forecast runs by status and error kind",
			},
			[]string{"status", "error_kind"},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "forecast_run_duration_seconds",
				Help:      "End-to-end forecast run duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		OracleAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "oracle_attempts_total",
				Help:      "Total oracle calls by result",
			},
			[]string{"result"},
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		ProfiledRowsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: forecastSubsystem,
				Name:      "profiled_rows_total",
				Help:      "Total CSV rows accepted by the dataset profiler",
			},
		),
	}
}

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents an HTTP endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointForecast is the inline-data forecast endpoint.
	EndpointForecast Endpoint = "forecast"

	// EndpointSensorForecast forecasts from stored sensor history.
	EndpointSensorForecast Endpoint = "sensor_forecast"

	// EndpointProfile is the CSV profiling endpoint.
	EndpointProfile Endpoint = "profile"
)

// =============================================================================
// Helper Methods
// =============================================================================

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// The recording methods are no-ops on a nil *ForecastMetrics so callers
// without a registry can pass nil.

// RecordRequest records a completed HTTP request.
func (m *ForecastMetrics) RecordRequest(endpoint Endpoint, success bool) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), statusLabel(success)).Inc()
}

// RecordRateLimited records a request rejected by the limiter.
func (m *ForecastMetrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

// RecordProfiledRows adds n accepted CSV rows.
func (m *ForecastMetrics) RecordProfiledRows(n int) {
	if m == nil {
		return
	}
	m.ProfiledRowsTotal.Add(float64(n))
}

// ObserveAttempt records one oracle attempt.
func (m *ForecastMetrics) ObserveAttempt(result string) {
	if m == nil {
		return
	}
	m.OracleAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records a finished forecast run. kind is empty on success.
func (m *ForecastMetrics) ObserveRun(success bool, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusLabel(success)
	if kind == "" {
		kind = "none"
	}
	m.RunsTotal.WithLabelValues(status, kind).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}
