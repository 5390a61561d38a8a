// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package routes

import (
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHorizon/services/sensorstore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries what the routes need.
type Dependencies struct {
	Pipeline handlers.ForecastRunner
	Metrics  *observability.ForecastMetrics

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer

	// Store backs the sensor forecast route. Nil leaves the route
	// unregistered.
	Store sensorstore.Store

	RateLimitRPS   float64
	RateLimitBurst int

	// Now defaults to time.Now.
	Now func() time.Time
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// The limiter is shared by every route that consults the oracle.
	limit := middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst, deps.Metrics)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		timeseries := v1.Group("/timeseries")
		{
			timeseries.POST("/forecast", limit, handlers.HandleForecast(deps.Pipeline, deps.Metrics))
			timeseries.POST("/profile", handlers.HandleProfile(deps.Metrics))
		}

		if deps.Store != nil {
			v1.POST("/sensors/:sensor_id/forecast", limit,
				handlers.HandleSensorForecast(deps.Store, deps.Pipeline, deps.Metrics, now))
		}
	}
}
