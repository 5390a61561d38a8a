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

// =============================================================================
// Bucket Widths
// =============================================================================

// ErrInvalidBucketWidth is returned for widths outside the supported set.
var ErrInvalidBucketWidth = errors.New("invalid bucket width")

// ErrGridTooLarge is returned when the readings span more buckets than the
// caller allows. The check runs before the grid is allocated.
var ErrGridTooLarge = errors.New("resampled grid too large")

// DefaultMaxGridBuckets bounds the grid built by Resample.
const DefaultMaxGridBuckets int64 = 1_000_000

// bucketLabels maps the supported frequency labels to widths in seconds.
var bucketLabels = map[string]int64{
	"1s":  1,
	"5s":  5,
	"10s": 10,
	"30s": 30,
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"1h":  3600,
	"1d":  86400,
}

// SupportedBucketWidths lists every valid bucket width in seconds, ascending.
var SupportedBucketWidths = []int64{1, 5, 10, 30, 60, 300, 900, 3600, 86400}

// BucketWidthForLabel returns the width in seconds for a label such as "5m".
func BucketWidthForLabel(label string) (int64, error) {
	w, ok := bucketLabels[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBucketWidth, label)
	}
	return w, nil
}

// LabelForBucketWidth is the inverse of BucketWidthForLabel.
func LabelForBucketWidth(width int64) (string, error) {
	for label, w := range bucketLabels {
		if w == width {
			return label, nil
		}
	}
	return "", fmt.Errorf("%w: %ds", ErrInvalidBucketWidth, width)
}

// IsSupportedBucketWidth reports whether width is one of SupportedBucketWidths.
func IsSupportedBucketWidth(width int64) bool {
	for _, w := range SupportedBucketWidths {
		if w == width {
			return true
		}
	}
	return false
}

// =============================================================================
// Resampling
// =============================================================================

// Aggregation selects how readings sharing a bucket are combined.
type Aggregation string

const (
	// AggregationMean averages all readings in a bucket.
	AggregationMean Aggregation = "MEAN"

	// AggregationLast keeps the chronologically last reading in a bucket.
	AggregationLast Aggregation = "LAST"
)

// GridPoint is one bucket of a resampled series. Present is false for
// buckets that received no reading; Value is meaningless in that case.
type GridPoint struct {
	BucketStart time.Time
	Value       float64
	Present     bool
}

// Resample aligns readings onto a contiguous grid of fixed-width buckets.
//
// # Description
//
// The bucket index of a reading is floor(epoch_ms / width_ms). The grid
// covers every index from the first reading's bucket to the last reading's
// bucket inclusive. Buckets that receive no finite value are returned with
// Present=false and are never interpolated here.
//
// # Inputs
//
//   - readings: Raw readings in any order. Missing readings and non-finite
//     values are ignored.
//   - widthSeconds: One of SupportedBucketWidths.
//   - agg: AggregationMean or AggregationLast. Empty means mean.
//
// # Outputs
//
//   - []GridPoint: Contiguous buckets, empty for empty input.
//   - error: Wraps ErrInvalidBucketWidth for unsupported widths and
//     ErrGridTooLarge when the span exceeds DefaultMaxGridBuckets.
//
// # Limitations
//
//   - Callers must enforce any minimum series length themselves.
func Resample(readings []Reading, widthSeconds int64, agg Aggregation) ([]GridPoint, error) {
	return ResampleBounded(readings, widthSeconds, agg, DefaultMaxGridBuckets)
}

// ResampleBounded is Resample with an explicit bucket limit. A maxBuckets
// of zero or less falls back to DefaultMaxGridBuckets.
func ResampleBounded(readings []Reading, widthSeconds int64, agg Aggregation, maxBuckets int64) ([]GridPoint, error) {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxGridBuckets
	}
	if !IsSupportedBucketWidth(widthSeconds) {
		return nil, fmt.Errorf("%w: %ds", ErrInvalidBucketWidth, widthSeconds)
	}
	switch agg {
	case "", AggregationMean, AggregationLast:
	default:
		return nil, fmt.Errorf("unsupported aggregation %q", agg)
	}
	if len(readings) == 0 {
		return []GridPoint{}, nil
	}

	sorted := SortReadings(readings)
	widthMs := widthSeconds * 1000

	firstIdx := floorDiv(sorted[0].Timestamp.UnixMilli(), widthMs)
	lastIdx := floorDiv(sorted[len(sorted)-1].Timestamp.UnixMilli(), widthMs)
	if span := lastIdx - firstIdx + 1; span > maxBuckets {
		return nil, fmt.Errorf("%w: %d buckets of %ds exceeds limit %d", ErrGridTooLarge, span, widthSeconds, maxBuckets)
	}

	type bucket struct {
		sum   float64
		count int
		last  float64
	}
	buckets := make(map[int64]*bucket)
	for _, r := range sorted {
		if !r.Usable() {
			continue
		}
		idx := floorDiv(r.Timestamp.UnixMilli(), widthMs)
		b, ok := buckets[idx]
		if !ok {
			b = &bucket{}
			buckets[idx] = b
		}
		b.sum += r.Value
		b.count++
		b.last = r.Value
	}

	grid := make([]GridPoint, 0, lastIdx-firstIdx+1)
	for idx := firstIdx; idx <= lastIdx; idx++ {
		gp := GridPoint{BucketStart: time.UnixMilli(idx * widthMs).UTC()}
		if b, ok := buckets[idx]; ok {
			gp.Present = true
			if agg == AggregationLast {
				gp.Value = b.last
			} else {
				gp.Value = b.sum / float64(b.count)
			}
		}
		grid = append(grid, gp)
	}
	return grid, nil
}

// MissingFraction returns the share of grid buckets with no value, in [0, 1].
func MissingFraction(grid []GridPoint) float64 {
	if len(grid) == 0 {
		return 0
	}
	missing := 0
	for _, gp := range grid {
		if !gp.Present {
			missing++
		}
	}
	return float64(missing) / float64(len(grid))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
