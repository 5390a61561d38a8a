// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Rate Limiting
//
// Forecast routes call the oracle up to twice per request, so they sit
// behind a shared token bucket. Requests that find the bucket empty are
// rejected immediately with 429 rather than queued.
//
//	Request
//	   │
//	   ▼
//	RateLimit
//	   │
//	   ├─► limiter.Allow()
//	   │      │
//	   │      ├─► false: 429 + Retry-After, RecordRateLimited
//	   │      │
//	   │      └─► true
//	   ▼
//	Handler
package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitRecorder counts rejected requests. *observability.ForecastMetrics
// satisfies it.
type RateLimitRecorder interface {
	RecordRateLimited(endpoint string)
}

// RateLimit returns middleware admitting rps requests per second with the
// given burst across every route it wraps.
//
// # Inputs
//
//   - rps: Sustained rate. Zero or negative disables limiting.
//   - burst: Bucket size. Values below 1 are raised to 1.
//   - recorder: Optional. May be nil.
func RateLimit(rps float64, burst int, recorder RateLimitRecorder) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))

	return func(c *gin.Context) {
		if limiter.Allow() {
			c.Next()
			return
		}
		slog.Warn("Rate limit exceeded", "path", c.FullPath(), "client_ip", c.ClientIP())
		if recorder != nil {
			recorder.RecordRateLimited(c.FullPath())
		}
		c.Header("Retry-After", retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			datatypes.NewErrorResponse("Rate limit exceeded, retry later"))
	}
}
