// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timeseries

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxRowErrors is the number of bad rows tolerated in one upload.
	MaxRowErrors = 100

	// reportedRowErrors is how many row errors are echoed back on rejection.
	reportedRowErrors = 10

	// PreviewRows caps the preview returned with a profile.
	PreviewRows = 50
)

// ErrTooManyRowErrors is returned when an upload exceeds MaxRowErrors.
var ErrTooManyRowErrors = errors.New("too many parsing errors")

// RowErrorsError carries the first few row errors of a rejected upload.
type RowErrorsError struct {
	Total  int
	Sample []string
}

func (e *RowErrorsError) Error() string {
	return fmt.Sprintf("%s: %d rows rejected", ErrTooManyRowErrors, e.Total)
}

func (e *RowErrorsError) Unwrap() error { return ErrTooManyRowErrors }

// TimeRange is the first and last timestamp of a profiled series.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreviewRow is one reading echoed back in a profile.
type PreviewRow struct {
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value"`
	SensorID  string    `json:"sensor_id,omitempty"`
}

// DatasetProfile summarizes an uploaded dataset.
type DatasetProfile struct {
	RowCount   int              `json:"row_count"`
	Sensors    []string         `json:"sensors"`
	TimeRange  TimeRange        `json:"time_range"`
	Frequency  FrequencyProfile `json:"frequency"`
	Statistics Stats            `json:"statistics"`
	Preview    []PreviewRow     `json:"preview"`
}

// BuildProfile profiles a parsed CSV upload.
//
// # Description
//
// Uploads with more than MaxRowErrors bad rows are rejected with a
// *RowErrorsError. The sensor filter applies only when the upload carries
// more than one sensor. Frequency is measured on the raw timestamps and
// statistics on the raw values, missing markers included.
//
// # Outputs
//
//   - DatasetProfile: The summary.
//   - error: *RowErrorsError, or ErrInsufficientTimestamps when fewer
//     than two readings remain.
func BuildProfile(parsed CSVResult, sensorID string) (DatasetProfile, error) {
	if len(parsed.Errors) > MaxRowErrors {
		sample := parsed.Errors
		if len(sample) > reportedRowErrors {
			sample = sample[:reportedRowErrors]
		}
		return DatasetProfile{}, &RowErrorsError{Total: len(parsed.Errors), Sample: sample}
	}

	readings := parsed.Readings
	if sensorID != "" && len(parsed.Sensors) > 1 {
		readings = make([]Reading, 0, len(parsed.Readings))
		for _, r := range parsed.Readings {
			if r.SensorID == sensorID {
				readings = append(readings, r)
			}
		}
	}

	timestamps := Timestamps(readings)
	freq, err := ProfileFrequency(timestamps)
	if err != nil {
		return DatasetProfile{}, err
	}

	sensors := parsed.Sensors
	if sensors == nil {
		sensors = []string{}
	}

	return DatasetProfile{
		RowCount: len(readings),
		Sensors:  sensors,
		TimeRange: TimeRange{
			Start: timestamps[0],
			End:   timestamps[len(timestamps)-1],
		},
		Frequency:  freq,
		Statistics: ComputeReadingStats(readings),
		Preview:    preview(readings),
	}, nil
}

func preview(readings []Reading) []PreviewRow {
	n := min(len(readings), PreviewRows)
	rows := make([]PreviewRow, n)
	for i := 0; i < n; i++ {
		rows[i] = PreviewRow{Timestamp: readings[i].Timestamp, SensorID: readings[i].SensorID}
		if r := readings[i]; r.Usable() {
			v := r.Value
			rows[i].Value = &v
		}
	}
	return rows
}
