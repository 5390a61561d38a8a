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
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientTimestamps is returned when fewer than two timestamps
// are available for profiling.
var ErrInsufficientTimestamps = errors.New("need at least 2 timestamps")

// FrequencyProfile describes the sampling cadence of a raw series.
type FrequencyProfile struct {
	DetectedFreqSeconds   float64 `json:"detected_freq_seconds"`
	IrregularityPct       float64 `json:"irregularity_pct"`
	MissingIntervals      int     `json:"missing_intervals"`
	SuggestedBucketWidth  int64   `json:"suggested_bucket_width"`
	SuggestedResampleFreq string  `json:"suggested_resample_freq"`
}

// frequencyLadder maps an upper bound on the median delta (exclusive) to a
// bucket width. The last rung catches everything else.
var frequencyLadder = []struct {
	below float64
	width int64
}{
	{2, 1},
	{7, 5},
	{20, 10},
	{45, 30},
	{180, 60},
	{450, 300},
	{1800, 900},
	{7200, 3600},
}

// ProfileFrequency measures the cadence of an ordered timestamp sequence.
//
// # Description
//
// Deltas between consecutive timestamps are taken in seconds. The detected
// frequency is their median; irregularity is the share of deltas further
// than two standard deviations from the median; missing intervals compares
// the span against the count expected at the median cadence.
//
// # Outputs
//
//   - FrequencyProfile: The measured profile.
//   - error: ErrInsufficientTimestamps for fewer than two timestamps.
//
// # Assumptions
//
//   - timestamps are sorted ascending.
func ProfileFrequency(timestamps []time.Time) (FrequencyProfile, error) {
	if len(timestamps) < 2 {
		return FrequencyProfile{}, ErrInsufficientTimestamps
	}

	deltas := make([]float64, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		deltas[i-1] = timestamps[i].Sub(timestamps[i-1]).Seconds()
	}

	med := median(deltas)
	std := math.Sqrt(stat.PopVariance(deltas, nil))

	irregular := 0
	for _, d := range deltas {
		if math.Abs(d-med) > 2*std {
			irregular++
		}
	}

	missing := 0
	if med > 0 {
		span := timestamps[len(timestamps)-1].Sub(timestamps[0]).Seconds()
		expected := int(math.Floor(span / med))
		missing = max(0, expected-len(timestamps))
	}

	width := SuggestBucketWidth(med)
	label, _ := LabelForBucketWidth(width)

	return FrequencyProfile{
		DetectedFreqSeconds:   med,
		IrregularityPct:       100 * float64(irregular) / float64(len(deltas)),
		MissingIntervals:      missing,
		SuggestedBucketWidth:  width,
		SuggestedResampleFreq: label,
	}, nil
}

// SuggestBucketWidth picks a bucket width in seconds for a median delta.
func SuggestBucketWidth(medianSeconds float64) int64 {
	for _, rung := range frequencyLadder {
		if medianSeconds < rung.below {
			return rung.width
		}
	}
	return 86400
}

// median averages the two middle values for even lengths.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
