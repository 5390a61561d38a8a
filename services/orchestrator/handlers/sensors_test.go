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
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/forecast"
	"github.com/AleutianAI/AleutianHorizon/services/sensorstore"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sensorNow = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	readings []timeseries.Reading
	err      error

	gotSensor string
	gotStart  time.Time
	gotStop   time.Time
}

func (f *fakeStore) History(_ context.Context, sensorID string, start, stop time.Time) ([]timeseries.Reading, error) {
	f.gotSensor, f.gotStart, f.gotStop = sensorID, start, stop
	return f.readings, f.err
}

func storedReadings(n int) []timeseries.Reading {
	out := make([]timeseries.Reading, n)
	for i := range out {
		out[i] = timeseries.Reading{
			Timestamp: sensorNow.Add(-time.Duration(n-i) * time.Minute),
			Value:     float64(i),
			SensorID:  "pump-07",
		}
	}
	return out
}

const sensorForecastPath = "/v1/sensors/:sensor_id/forecast"

func sensorRouter(store sensorstore.Store, oracle *stubOracle, opts ...forecast.Option) *gin.Engine {
	router := gin.New()
	router.POST(sensorForecastPath,
		HandleSensorForecast(store, newTestPipeline(oracle, nil, opts...), nil, func() time.Time { return sensorNow }))
	return router
}

func TestHandleSensorForecast_Success(t *testing.T) {
	store := &fakeStore{readings: storedReadings(30)}
	oracle := &stubOracle{content: oracleContent(4)}
	router := sensorRouter(store, oracle)

	w := postJSON(t, router, "/v1/sensors/pump-07/forecast", map[string]any{
		"lookback":      "6h",
		"horizon_steps": 4,
		"resample_freq": "1m",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Len(t, env.Forecast.P50, 4)
	assert.Equal(t, "pump-07", store.gotSensor)
	assert.Equal(t, sensorNow, store.gotStop)
	assert.Equal(t, sensorNow.Add(-6*time.Hour), store.gotStart)
}

func TestHandleSensorForecast_DefaultLookback(t *testing.T) {
	store := &fakeStore{readings: storedReadings(30)}
	router := sensorRouter(store, &stubOracle{content: oracleContent(2)})

	w := postJSON(t, router, "/v1/sensors/pump-07/forecast", map[string]any{"horizon_steps": 2})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, sensorNow.Add(-24*time.Hour), store.gotStart)
}

func TestHandleSensorForecast_Failures(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		store      *fakeStore
		wantStatus int
		wantError  string
	}{
		{
			name:       "unsafe sensor id",
			path:       "/v1/sensors/pump!07/forecast",
			body:       map[string]any{"horizon_steps": 2},
			store:      &fakeStore{},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid sensor id",
		},
		{
			name:       "malformed body",
			path:       "/v1/sensors/pump-07/forecast",
			body:       "{nope",
			store:      &fakeStore{},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "bad lookback",
			path:       "/v1/sensors/pump-07/forecast",
			body:       map[string]any{"horizon_steps": 2, "lookback": "-1h"},
			store:      &fakeStore{},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
		},
		{
			name:       "no readings",
			path:       "/v1/sensors/pump-07/forecast",
			body:       map[string]any{"horizon_steps": 2},
			store:      &fakeStore{err: fmt.Errorf("%w for sensor pump-07", sensorstore.ErrNoReadings)},
			wantStatus: http.StatusNotFound,
			wantError:  "No readings found for sensor",
		},
		{
			name:       "store down",
			path:       "/v1/sensors/pump-07/forecast",
			body:       map[string]any{"horizon_steps": 2},
			store:      &fakeStore{err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantError:  "Failed to load sensor history",
		},
		{
			name:       "too little history",
			path:       "/v1/sensors/pump-07/forecast",
			body:       map[string]any{"horizon_steps": 2, "resample_freq": "1m"},
			store:      &fakeStore{readings: storedReadings(5)},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &stubOracle{content: oracleContent(2)}
			sink := &forecast.MemoryAuditSink{}
			router := sensorRouter(tt.store, oracle, forecast.WithAuditSink(sink))

			w := postJSON(t, router, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.Contains(t, env.Error, tt.wantError)
			assert.Equal(t, int32(0), oracle.calls.Load())
			assertOneFailedAudit(t, sink, sensorForecastPath)
		})
	}
}
