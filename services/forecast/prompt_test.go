// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forecast

import (
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/stretchr/testify/assert"
)

var promptStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func pointsOf(values ...float64) []timeseries.Point {
	pts := make([]timeseries.Point, len(values))
	for i, v := range values {
		pts[i] = timeseries.Point{Timestamp: promptStart.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return pts
}

func TestBuildPrompt_Contents(t *testing.T) {
	prompt := BuildPrompt(pointsOf(1, 2, 3, 4), 7, true)

	assert.Contains(t, prompt, "7-step forecast")
	assert.Contains(t, prompt, "- Data points: 4")
	assert.Contains(t, prompt, "- Time range: 2025-03-01T00:00:00Z to 2025-03-01T00:03:00Z")
	assert.Contains(t, prompt, "- Min: 1.00, Max: 4.00, Mean: 2.50")
	assert.Contains(t, prompt, "- Trend: increasing")
	assert.Contains(t, prompt, "Last 4 values:\n1.00, 2.00, 3.00, 4.00")
	assert.Contains(t, prompt, `"p10": [7 numbers]`)
	assert.Contains(t, prompt, `"p90": [7 numbers]`)
	assert.Contains(t, prompt, "p10[i] <= p50[i] <= p90[i]")
	for _, f := range QualityFlagVocabulary {
		assert.Contains(t, prompt, string(f))
	}
}

func TestBuildPrompt_PointForecastOmitsBands(t *testing.T) {
	prompt := BuildPrompt(pointsOf(5, 5, 5), 2, false)

	assert.Contains(t, prompt, `"p50": [2 numbers]`)
	assert.NotContains(t, prompt, `"p10"`)
	assert.NotContains(t, prompt, "p10[i] <= p50[i]")
}

func TestBuildPrompt_ListsOnlyLastFiftyValues(t *testing.T) {
	values := make([]float64, 80)
	for i := range values {
		values[i] = float64(i)
	}
	prompt := BuildPrompt(pointsOf(values...), 3, false)

	assert.Contains(t, prompt, "Last 50 values:\n30.00, 31.00")
	assert.NotContains(t, prompt, "29.00,")
	assert.True(t, strings.Contains(prompt, "79.00\n"))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	pts := pointsOf(3, 1, 4, 1, 5, 9, 2, 6)
	assert.Equal(t, BuildPrompt(pts, 4, true), BuildPrompt(pts, 4, true))
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"empty", nil, TrendStable},
		{"single", []float64{3}, TrendStable},
		{"rising", []float64{10, 10, 12, 12}, TrendIncreasing},
		{"falling", []float64{10, 10, 8, 8}, TrendDecreasing},
		{"within band", []float64{10, 10, 10.5, 10.5}, TrendStable},
		{"exactly ten percent", []float64{10, 10, 11, 11}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.values))
		})
	}
}
