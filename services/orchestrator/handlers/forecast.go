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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianHorizon/services/forecast"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var forecastTracer = otel.Tracer("aleutian.horizon.handlers")

// MaxForecastBodyBytes caps a JSON forecast body.
const MaxForecastBodyBytes = 16 << 20

// ForecastRunner runs one forecast request. *forecast.Pipeline satisfies it.
//
// Reject audits a request turned away before Run, so every request leaves
// exactly one audit record.
type ForecastRunner interface {
	Run(ctx context.Context, req forecast.Request) (*forecast.Result, error)
	Reject(endpoint string, kind error, details []string, format string, args ...any) *forecast.PipelineError
}

// HandleForecast serves POST /v1/timeseries/forecast.
//
// # Description
//
// Binds and validates the JSON body, runs the pipeline and writes either the
// forecast envelope or an error envelope. Request-shape, insufficient-data
// and horizon errors map to 400. Oracle and response-validation failures map
// to 502 since the request itself was acceptable. Bodies over
// MaxForecastBodyBytes get 413.
func HandleForecast(runner ForecastRunner, metrics *observability.ForecastMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := forecastTracer.Start(c.Request.Context(), "HandleForecast")
		defer span.End()

		reject := func(status int, details []string, msg string) {
			perr := runner.Reject(c.FullPath(), forecast.ErrRequestShape, details, "%s", msg)
			metrics.RecordRequest(observability.EndpointForecast, false)
			c.JSON(status, datatypes.NewErrorResponse(perr.Error(), perr.Details...))
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxForecastBodyBytes)
		var req datatypes.ForecastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Invalid forecast request body", "error", err)
			span.RecordError(err)
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(http.StatusRequestEntityTooLarge, nil, "Request body exceeds the 16 MB limit")
				return
			}
			reject(http.StatusBadRequest, []string{err.Error()}, "Invalid request body")
			return
		}

		pipelineReq, details := req.ToPipelineRequest(c.FullPath())
		if len(details) > 0 {
			slog.Warn("Forecast request failed validation", "violations", len(details))
			reject(http.StatusBadRequest, details, "Invalid request")
			return
		}
		span.SetAttributes(attribute.Int("request.data_points", len(pipelineReq.Readings)))

		result, err := runner.Run(ctx, pipelineReq)
		if err != nil {
			span.RecordError(err)
			metrics.RecordRequest(observability.EndpointForecast, false)
			writePipelineError(c, err)
			return
		}

		metrics.RecordRequest(observability.EndpointForecast, true)
		c.JSON(http.StatusOK, datatypes.ForecastResponse{Success: true, Result: result})
	}
}

// pipelineStatus maps a pipeline error kind to an HTTP status.
func pipelineStatus(err error) int {
	switch {
	case errors.Is(err, forecast.ErrRequestShape),
		errors.Is(err, forecast.ErrInsufficientData),
		errors.Is(err, forecast.ErrHorizonExceeded):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrOracle),
		errors.Is(err, forecast.ErrResponseValidation),
		errors.Is(err, forecast.ErrHistoryUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writePipelineError(c *gin.Context, err error) {
	status := pipelineStatus(err)
	var perr *forecast.PipelineError
	if !errors.As(err, &perr) {
		slog.Error("Forecast pipeline failed unexpectedly", "error", err)
		c.JSON(status, datatypes.NewErrorResponse("Internal error"))
		return
	}
	if status == http.StatusBadGateway {
		slog.Error("Forecast oracle run failed", "error", perr.Error(), "details", perr.Details)
	} else {
		slog.Info("Forecast request rejected", "error", perr.Error())
	}
	c.JSON(status, datatypes.NewErrorResponse(perr.Error(), perr.Details...))
}
