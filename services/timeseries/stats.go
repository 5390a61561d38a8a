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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes raw values.
type Stats struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	MissingPct float64 `json:"missing_pct"`
}

// ComputeStats summarizes values, treating NaN and ±Inf as missing.
//
// Std is the sample standard deviation (N-1) and is zero with fewer than
// two valid values. When every value is missing all fields are zero except
// MissingPct, which is 100. Empty input yields the same result.
func ComputeStats(values []float64) Stats {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	return summarize(valid, len(values))
}

// ComputeReadingStats is ComputeStats over readings; a reading flagged
// Missing counts toward MissingPct like a non-finite value.
func ComputeReadingStats(readings []Reading) Stats {
	return summarize(UsableValues(readings), len(readings))
}

func summarize(valid []float64, total int) Stats {
	if len(valid) == 0 {
		return Stats{MissingPct: 100}
	}

	s := Stats{
		Min:        floats.Min(valid),
		Max:        floats.Max(valid),
		MissingPct: 100 * float64(total-len(valid)) / float64(total),
	}
	if len(valid) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(valid, nil)
	} else {
		s.Mean = valid[0]
	}
	return s
}

// PointValues extracts the values of points in order.
func PointValues(points []Point) []float64 {
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Value
	}
	return vals
}
