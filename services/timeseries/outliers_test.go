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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(values ...float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Timestamp: at(i * 60), Value: v}
	}
	return pts
}

func TestClip_OffIsIdentity(t *testing.T) {
	in := seriesOf(1, 1e9, -1e9, 4)
	res, err := Clip(in, OutliersOff)
	require.NoError(t, err)
	assert.Equal(t, in, res.Points)
	assert.Zero(t, res.Clipped)
}

func TestClip_EmptyInput(t *testing.T) {
	res, err := Clip(nil, OutliersWinsorize)
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestClip_WinsorizeClampsSpike(t *testing.T) {
	values := make([]float64, 0, 201)
	for i := 1; i <= 200; i++ {
		values = append(values, float64(i))
	}
	values = append(values, 1e6)

	res, err := Clip(seriesOf(values...), OutliersWinsorize)
	require.NoError(t, err)

	assert.Less(t, res.Upper, 1e6)
	assert.GreaterOrEqual(t, res.Lower, 1.0)
	assert.Equal(t, res.Upper, res.Points[200].Value)
	assert.Equal(t, 100.0, res.Points[99].Value, "interior values untouched")
	assert.Positive(t, res.Clipped)
}

func TestClip_DoesNotMutateInput(t *testing.T) {
	in := seriesOf(1, 2, 3, 1000)
	_, err := Clip(in, OutliersWinsorize)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, in[3].Value)
}

func TestClip_UnknownPolicy(t *testing.T) {
	_, err := Clip(seriesOf(1), OutlierPolicy("ZSCORE"))
	assert.Error(t, err)
}

// Every winsorized value lies inside the bounds computed from the input.
func TestClip_OutputWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.Intn(300)
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.NormFloat64() * 50
			if rng.Float64() < 0.02 {
				values[i] *= 1000
			}
		}
		res, err := Clip(seriesOf(values...), OutliersWinsorize)
		require.NoError(t, err)
		require.Len(t, res.Points, n)
		for _, p := range res.Points {
			assert.GreaterOrEqual(t, p.Value, res.Lower)
			assert.LessOrEqual(t, p.Value, res.Upper)
		}
	}
}
