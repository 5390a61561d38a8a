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
	"strings"

	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// MaxUploadBytes caps a profile upload.
const MaxUploadBytes = 10 << 20

// HandleProfile serves POST /v1/timeseries/profile.
//
// # Description
//
// Accepts a multipart "file" holding CSV readings and an optional
// "sensor_id" form field, and returns the dataset profile. Uploads over
// MaxUploadBytes are rejected with 413.
func HandleProfile(metrics *observability.ForecastMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := forecastTracer.Start(c.Request.Context(), "HandleProfile")
		defer span.End()

		fail := func(status int, msg string, details ...string) {
			metrics.RecordRequest(observability.EndpointProfile, false)
			c.JSON(status, datatypes.NewErrorResponse(msg, details...))
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(http.StatusRequestEntityTooLarge, "File exceeds the 10 MB upload limit")
				return
			}
			fail(http.StatusBadRequest, "A CSV file is required in the 'file' field")
			return
		}

		file, err := header.Open()
		if err != nil {
			slog.Error("Failed to open uploaded file", "filename", header.Filename, "error", err)
			span.RecordError(err)
			fail(http.StatusBadRequest, "Uploaded file could not be read")
			return
		}
		defer file.Close()

		parsed, err := timeseries.ParseCSV(file)
		if err != nil {
			fail(http.StatusBadRequest, "Invalid CSV", err.Error())
			return
		}

		sensorID := strings.TrimSpace(c.PostForm("sensor_id"))
		profile, err := timeseries.BuildProfile(parsed, sensorID)
		if err != nil {
			var rowErrs *timeseries.RowErrorsError
			if errors.As(err, &rowErrs) {
				slog.Info("Profile upload rejected", "filename", header.Filename, "row_errors", rowErrs.Total)
				fail(http.StatusBadRequest, "Too many parsing errors", rowErrs.Sample...)
				return
			}
			fail(http.StatusBadRequest, "Not enough readings to profile", err.Error())
			return
		}

		span.SetAttributes(
			attribute.Int("profile.rows", profile.RowCount),
			attribute.Int("profile.row_errors", len(parsed.Errors)),
		)
		metrics.RecordProfiledRows(profile.RowCount)
		metrics.RecordRequest(observability.EndpointProfile, true)
		c.JSON(http.StatusOK, datatypes.ProfileResponse{Success: true, DatasetProfile: profile})
	}
}
