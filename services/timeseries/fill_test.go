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
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill_Drop(t *testing.T) {
	grid := []GridPoint{missing(0), present(60, 1), missing(120), present(180, 3)}
	out, err := Fill(grid, MissingDrop, DefaultMaxGap)
	require.NoError(t, err)
	assert.Equal(t, []Point{{at(60), 1}, {at(180), 3}}, out)
}

func TestFill_ForwardFillSkipsLeadingGap(t *testing.T) {
	grid := []GridPoint{missing(0), missing(60), present(120, 5), missing(180), missing(240), present(300, 7), missing(360)}
	out, err := Fill(grid, MissingForwardFill, DefaultMaxGap)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{at(120), 5},
		{at(180), 5},
		{at(240), 5},
		{at(300), 7},
		{at(360), 7},
	}, out)
}

func TestFill_LinearInterpolatesByTime(t *testing.T) {
	grid := []GridPoint{present(0, 0), missing(60), missing(120), present(180, 30)}
	out, err := Fill(grid, MissingLinear, DefaultMaxGap)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.InDelta(t, 10.0, out[1].Value, 1e-9)
	assert.InDelta(t, 20.0, out[2].Value, 1e-9)
}

func TestFill_LinearLeavesEdgesAndWideGaps(t *testing.T) {
	grid := []GridPoint{missing(0), present(60, 1), missing(120), present(180, 3), missing(240)}
	out, err := Fill(grid, MissingLinear, DefaultMaxGap)
	require.NoError(t, err)
	assert.Equal(t, []Point{{at(60), 1}, {at(120), 2}, {at(180), 3}}, out)

	// Span of 7200s between neighbours exceeds a one hour bound.
	wide := []GridPoint{present(0, 1), missing(3600), present(7200, 3)}
	out, err = Fill(wide, MissingLinear, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []Point{{at(0), 1}, {at(7200), 3}}, out)

	// Exactly at the bound is filled.
	out, err = Fill(wide, MissingLinear, 2*time.Hour)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestFill_UnknownPolicy(t *testing.T) {
	_, err := Fill([]GridPoint{present(0, 1)}, MissingPolicy("SPLINE"), DefaultMaxGap)
	assert.Error(t, err)
}

// No policy ever emits a missing or NaN value, never grows the series, and
// keeps timestamps ordered.
func TestFill_OutputIsAlwaysComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	policies := []MissingPolicy{MissingDrop, MissingForwardFill, MissingLinear}

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(30)
		grid := make([]GridPoint, n)
		for i := range grid {
			grid[i] = GridPoint{BucketStart: at(i * 900)}
			if rng.Float64() < 0.6 {
				grid[i].Present = true
				grid[i].Value = rng.NormFloat64() * 10
			}
		}

		for _, p := range policies {
			out, err := Fill(grid, p, DefaultMaxGap)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(out), len(grid))
			for i, pt := range out {
				assert.False(t, math.IsNaN(pt.Value), "policy %s", p)
				if i > 0 {
					assert.True(t, pt.Timestamp.After(out[i-1].Timestamp))
				}
			}
		}
	}
}
