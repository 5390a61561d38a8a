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
	"fmt"
	"time"
)

// MissingPolicy selects how empty grid buckets are handled.
type MissingPolicy string

const (
	// MissingLinear interpolates between valid neighbours on both sides.
	MissingLinear MissingPolicy = "LINEAR"

	// MissingForwardFill carries the last valid value forward.
	MissingForwardFill MissingPolicy = "FFILL"

	// MissingDrop removes empty buckets.
	MissingDrop MissingPolicy = "DROP"
)

// DefaultMaxGap bounds the span LINEAR is allowed to bridge.
const DefaultMaxGap = time.Hour

// Fill resolves every empty bucket of a grid so the output has no gaps.
//
// # Description
//
// DROP discards empty buckets. FFILL copies the nearest preceding valid
// value and drops leading empty buckets. LINEAR interpolates by time between
// the nearest valid neighbours when both exist and their distance is at most
// maxGap; anything else is dropped.
//
// # Outputs
//
//   - []Point: Same order as the grid, never longer, every value present.
//   - error: Non-nil for an unknown policy.
func Fill(grid []GridPoint, policy MissingPolicy, maxGap time.Duration) ([]Point, error) {
	switch policy {
	case MissingDrop:
		return fillDrop(grid), nil
	case MissingForwardFill:
		return fillForward(grid), nil
	case MissingLinear:
		return fillLinear(grid, maxGap), nil
	default:
		return nil, fmt.Errorf("unsupported missing policy %q", policy)
	}
}

func fillDrop(grid []GridPoint) []Point {
	out := make([]Point, 0, len(grid))
	for _, gp := range grid {
		if gp.Present {
			out = append(out, Point{Timestamp: gp.BucketStart, Value: gp.Value})
		}
	}
	return out
}

func fillForward(grid []GridPoint) []Point {
	out := make([]Point, 0, len(grid))
	var last float64
	seen := false
	for _, gp := range grid {
		switch {
		case gp.Present:
			last, seen = gp.Value, true
			out = append(out, Point{Timestamp: gp.BucketStart, Value: gp.Value})
		case seen:
			out = append(out, Point{Timestamp: gp.BucketStart, Value: last})
		}
	}
	return out
}

func fillLinear(grid []GridPoint, maxGap time.Duration) []Point {
	// next[i] is the index of the first present bucket at or after i, or -1.
	next := make([]int, len(grid))
	nextIdx := -1
	for i := len(grid) - 1; i >= 0; i-- {
		if grid[i].Present {
			nextIdx = i
		}
		next[i] = nextIdx
	}

	out := make([]Point, 0, len(grid))
	prev := -1
	for i, gp := range grid {
		if gp.Present {
			prev = i
			out = append(out, Point{Timestamp: gp.BucketStart, Value: gp.Value})
			continue
		}
		n := next[i]
		if prev < 0 || n < 0 {
			continue
		}
		lo, hi := grid[prev], grid[n]
		span := hi.BucketStart.Sub(lo.BucketStart)
		if span > maxGap {
			continue
		}
		ratio := float64(gp.BucketStart.Sub(lo.BucketStart)) / float64(span)
		out = append(out, Point{
			Timestamp: gp.BucketStart,
			Value:     lo.Value + ratio*(hi.Value-lo.Value),
		})
	}
	return out
}
