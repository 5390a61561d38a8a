// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package timeseries normalizes raw sensor readings onto a uniform time grid.
//
// # Description
//
// The package holds the pure, allocation-only stages of the forecast
// pipeline: timestamp parsing, resampling, gap filling, outlier clipping,
// frequency profiling and summary statistics. Every stage takes its input
// by value and returns a new slice; nothing here mutates caller data or
// touches the network.
//
// # Thread Safety
//
// All functions are safe for concurrent use. There is no package state
// beyond read-only lookup tables.
package timeseries

import (
	"math"
	"sort"
	"time"
)

// Reading is a single raw sensor observation.
//
// Missing marks a row whose source carried an explicit missing marker (see
// ParseCSV); Value is zero and meaningless then. The resampler skips
// missing readings and any non-finite Value.
type Reading struct {
	Timestamp time.Time
	Value     float64
	Missing   bool
	SensorID  string
}

// Usable reports whether r carries a finite observed value.
func (r Reading) Usable() bool {
	return !r.Missing && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Point is a cleaned, gap-free observation on the resampled grid.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// SortReadings returns a copy of readings ordered by ascending timestamp.
// Readings sharing a timestamp keep their input order.
func SortReadings(readings []Reading) []Reading {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// FilterSensor keeps readings for sensorID plus readings with no sensor id.
// An empty sensorID returns a copy of the input.
func FilterSensor(readings []Reading, sensorID string) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if sensorID == "" || r.SensorID == "" || r.SensorID == sensorID {
			out = append(out, r)
		}
	}
	return out
}

// Sensors returns the distinct non-empty sensor ids in first-seen order.
func Sensors(readings []Reading) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range readings {
		if r.SensorID == "" {
			continue
		}
		if _, ok := seen[r.SensorID]; ok {
			continue
		}
		seen[r.SensorID] = struct{}{}
		ids = append(ids, r.SensorID)
	}
	return ids
}

// Timestamps extracts the timestamps of readings in order.
func Timestamps(readings []Reading) []time.Time {
	ts := make([]time.Time, len(readings))
	for i, r := range readings {
		ts[i] = r.Timestamp
	}
	return ts
}

// UsableValues extracts the values of usable readings in order.
func UsableValues(readings []Reading) []float64 {
	vals := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Usable() {
			vals = append(vals, r.Value)
		}
	}
	return vals
}
