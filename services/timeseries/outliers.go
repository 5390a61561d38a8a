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
	"sort"

	"gonum.org/v1/gonum/stat"
)

// OutlierPolicy selects how extreme values are treated.
type OutlierPolicy string

const (
	// OutliersOff leaves values untouched.
	OutliersOff OutlierPolicy = "OFF"

	// OutliersWinsorize clamps values into the [p1, p99] band.
	OutliersWinsorize OutlierPolicy = "WINSORIZE_P1_P99"
)

// ClipResult is the output of Clip.
type ClipResult struct {
	Points []Point

	// Lower and Upper are the clamp bounds; both zero under OutliersOff.
	Lower float64
	Upper float64

	// Clipped counts values that were moved onto a bound.
	Clipped int
}

// Clip applies an outlier policy to a gap-free series.
//
// # Description
//
// OFF returns a copy of the input. WINSORIZE_P1_P99 computes the 1st and
// 99th linearly interpolated percentiles once over the whole input and
// clamps every value into that band. Empty input is returned unchanged.
func Clip(points []Point, policy OutlierPolicy) (ClipResult, error) {
	out := make([]Point, len(points))
	copy(out, points)

	switch policy {
	case OutliersOff:
		return ClipResult{Points: out}, nil
	case OutliersWinsorize:
	default:
		return ClipResult{}, fmt.Errorf("unsupported outlier policy %q", policy)
	}

	if len(out) == 0 {
		return ClipResult{Points: out}, nil
	}

	sorted := make([]float64, len(out))
	for i, p := range out {
		sorted[i] = p.Value
	}
	sort.Float64s(sorted)
	lower := stat.Quantile(0.01, stat.LinInterp, sorted, nil)
	upper := stat.Quantile(0.99, stat.LinInterp, sorted, nil)

	res := ClipResult{Points: out, Lower: lower, Upper: upper}
	for i := range out {
		v := out[i].Value
		switch {
		case v < lower:
			out[i].Value = lower
			res.Clipped++
		case v > upper:
			out[i].Value = upper
			res.Clipped++
		}
	}
	return res, nil
}
