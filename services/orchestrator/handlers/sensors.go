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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/validation"
	"github.com/AleutianAI/AleutianHorizon/services/forecast"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHorizon/services/sensorstore"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// HandleSensorForecast serves POST /v1/sensors/:sensor_id/forecast.
//
// # Description
//
// Loads the sensor's history over the requested lookback window from the
// store, then runs the same pipeline as the inline endpoint. now supplies
// the end of the window.
//
// # Limitations
//
// Store failures other than an empty window map to 502. Every early
// rejection is audited through runner.Reject.
func HandleSensorForecast(store sensorstore.Store, runner ForecastRunner,
	metrics *observability.ForecastMetrics, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := forecastTracer.Start(c.Request.Context(), "HandleSensorForecast")
		defer span.End()

		fail := func(status int, kind error, msg string, details ...string) {
			perr := runner.Reject(c.FullPath(), kind, details, "%s", msg)
			metrics.RecordRequest(observability.EndpointSensorForecast, false)
			c.JSON(status, datatypes.NewErrorResponse(perr.Error(), perr.Details...))
		}

		sensorID, err := validation.SanitizeSensorID(c.Param("sensor_id"))
		if err != nil {
			fail(http.StatusBadRequest, forecast.ErrRequestShape, "Invalid sensor id", err.Error())
			return
		}
		span.SetAttributes(attribute.String("sensor.id", sensorID))

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxForecastBodyBytes)
		var req datatypes.SensorForecastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(http.StatusRequestEntityTooLarge, forecast.ErrRequestShape, "Request body exceeds the 16 MB limit")
				return
			}
			fail(http.StatusBadRequest, forecast.ErrRequestShape, "Invalid request body", err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			fail(http.StatusBadRequest, forecast.ErrRequestShape, "Invalid request", datatypes.ValidationDetails(err)...)
			return
		}
		lookback, _ := req.LookbackDuration()

		stop := now().UTC()
		readings, err := store.History(ctx, sensorID, stop.Add(-lookback), stop)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, sensorstore.ErrNoReadings) {
				fail(http.StatusNotFound, forecast.ErrInsufficientData, "No readings found for sensor", err.Error())
				return
			}
			slog.Error("Failed to load sensor history", "sensor_id", sensorID, "error", err)
			fail(http.StatusBadGateway, forecast.ErrHistoryUnavailable, "Failed to load sensor history")
			return
		}

		result, err := runner.Run(ctx, forecast.Request{
			Settings: req.Settings(sensorID),
			Readings: readings,
			Endpoint: c.FullPath(),
		})
		if err != nil {
			span.RecordError(err)
			metrics.RecordRequest(observability.EndpointSensorForecast, false)
			writePipelineError(c, err)
			return
		}

		metrics.RecordRequest(observability.EndpointSensorForecast, true)
		c.JSON(http.StatusOK, datatypes.ForecastResponse{Success: true, Result: result})
	}
}
