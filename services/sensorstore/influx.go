// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package sensorstore loads stored sensor history for forecasting.
//
// The store is read only. Readings are expected in one measurement, tagged
// with sensor_id, with the reading in a single numeric field.
package sensorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/validation"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("aleutian.horizon.sensorstore")

const (
	defaultMeasurement = "sensor_readings"
	defaultField       = "value"
)

// ErrNoReadings is returned when the window holds no readings for the sensor.
var ErrNoReadings = errors.New("no readings found")

// Store loads the readings of one sensor within [start, stop).
type Store interface {
	History(ctx context.Context, sensorID string, start, stop time.Time) ([]timeseries.Reading, error)
}

// Config locates the readings in InfluxDB.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Field       string
}

// InfluxStore reads sensor history with Flux queries.
type InfluxStore struct {
	client      influxdb2.Client
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	field       string
}

var _ Store = (*InfluxStore)(nil)

// NewInfluxStore creates a store. No connection is made until the first
// query.
func NewInfluxStore(cfg Config) (*InfluxStore, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("InfluxDB configuration not set: url and bucket are required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = defaultMeasurement
	}
	if cfg.Field == "" {
		cfg.Field = defaultField
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client:      client,
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		field:       cfg.Field,
	}, nil
}

// History returns the sensor's readings in time order.
//
// # Description
//
// The sensor id is validated before it is embedded in the Flux query.
// Non-numeric and non-finite values are returned with Missing set so the
// missing-value policy can handle them.
//
// # Outputs
//
//   - []timeseries.Reading: Readings ordered by timestamp.
//   - error: Validation, query or decoding failure, or ErrNoReadings.
func (s *InfluxStore) History(ctx context.Context, sensorID string, start, stop time.Time) ([]timeseries.Reading, error) {
	ctx, span := tracer.Start(ctx, "InfluxStore.History")
	defer span.End()
	span.SetAttributes(attribute.String("sensor.id", sensorID))

	if err := validation.ValidateSensorID(sensorID); err != nil {
		return nil, fmt.Errorf("invalid sensor id: %w", err)
	}
	if !stop.After(start) {
		return nil, fmt.Errorf("empty history window: %s to %s", start.Format(time.RFC3339), stop.Format(time.RFC3339))
	}

	query := buildHistoryQuery(s.bucket, s.measurement, s.field, sensorID, start, stop)
	slog.Info("Fetching sensor history from InfluxDB", "sensor_id", sensorID,
		"start", start.Format(time.RFC3339), "stop", stop.Format(time.RFC3339))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("InfluxDB query failed: %w", err)
	}
	defer result.Close()

	var readings []timeseries.Reading
	for result.Next() {
		record := result.Record()
		value, ok := numericValue(record.Value())
		readings = append(readings, timeseries.Reading{
			Timestamp: record.Time().UTC(),
			Value:     value,
			Missing:   !ok,
			SensorID:  sensorID,
		})
	}
	if result.Err() != nil {
		span.RecordError(result.Err())
		return nil, fmt.Errorf("error reading InfluxDB results: %w", result.Err())
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w for sensor %s between %s and %s", ErrNoReadings, sensorID,
			start.Format(time.RFC3339), stop.Format(time.RFC3339))
	}

	span.SetAttributes(attribute.Int("readings", len(readings)))
	return timeseries.SortReadings(readings), nil
}

// Close releases the underlying HTTP client.
func (s *InfluxStore) Close() {
	s.client.Close()
}

func buildHistoryQuery(bucket, measurement, field, sensorID string, start, stop time.Time) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == "%s")
		  |> filter(fn: (r) => r._field == "%s")
		  |> filter(fn: (r) => r.sensor_id == "%s")
		  |> keep(columns: ["_time", "_value"])
		  |> sort(columns: ["_time"], desc: false)
	`, bucket, start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339), measurement, field, sensorID)
}

// numericValue reports ok=false for field values that are not numbers.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
