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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"gonum.org/v1/gonum/stat"
)

const (
	// promptTailValues is how many trailing values are listed verbatim.
	promptTailValues = 50

	trendUpRatio   = 1.1
	trendDownRatio = 0.9
)

// Trend labels embedded in the prompt.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// systemPrompt is sent as the system message on every oracle call.
const systemPrompt = "You are a precise time-series forecasting model. Return only valid JSON."

// BuildPrompt renders the full oracle payload for a cleaned context window.
//
// # Description
//
// The prompt is deterministic for a given input. It states the point count,
// time span, summary statistics, a trend label, the last 50 values, and the
// exact JSON contract the response must satisfy.
//
// # Inputs
//
//   - context: Cleaned points, oldest first, already capped to the window.
//   - horizon: Number of steps to forecast.
//   - uncertainty: Whether p10/p90 are requested.
//
// # Assumptions
//
//   - context is non-empty.
func BuildPrompt(context []timeseries.Point, horizon int, uncertainty bool) string {
	values := timeseries.PointValues(context)
	stats := timeseries.ComputeStats(values)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a time-series forecasting expert. Produce a %d-step forecast for the IoT sensor series below.\n\n", horizon)

	b.WriteString("Context statistics:\n")
	fmt.Fprintf(&b, "- Data points: %d\n", len(context))
	if len(context) > 0 {
		fmt.Fprintf(&b, "- Time range: %s to %s\n",
			context[0].Timestamp.UTC().Format(time.RFC3339),
			context[len(context)-1].Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Min: %s, Max: %s, Mean: %s, Std: %s\n",
		fmt2(stats.Min), fmt2(stats.Max), fmt2(stats.Mean), fmt2(stats.Std))
	fmt.Fprintf(&b, "- Trend: %s\n\n", Trend(values))

	tail := values
	if len(tail) > promptTailValues {
		tail = tail[len(tail)-promptTailValues:]
	}
	formatted := make([]string, len(tail))
	for i, v := range tail {
		formatted[i] = fmt2(v)
	}
	fmt.Fprintf(&b, "Last %d values:\n%s\n\n", len(tail), strings.Join(formatted, ", "))

	b.WriteString("Task:\n")
	if uncertainty {
		fmt.Fprintf(&b, "Forecast the next %d values. Provide P10, P50 and P90 quantiles.\n\n", horizon)
	} else {
		fmt.Fprintf(&b, "Forecast the next %d values. Provide point predictions (P50).\n\n", horizon)
	}

	flags := make([]string, len(QualityFlagVocabulary))
	for i, f := range QualityFlagVocabulary {
		flags[i] = string(f)
	}

	b.WriteString("Output format (strict JSON object, nothing else):\n{\n")
	fmt.Fprintf(&b, "  \"p50\": [%d numbers],\n", horizon)
	if uncertainty {
		fmt.Fprintf(&b, "  \"p10\": [%d numbers],\n", horizon)
		fmt.Fprintf(&b, "  \"p90\": [%d numbers],\n", horizon)
	}
	b.WriteString("  \"notes\": \"one sentence of reasoning\",\n")
	fmt.Fprintf(&b, "  \"quality_flags\": [zero or more of: %s]\n}\n\n", strings.Join(flags, ", "))

	b.WriteString("Requirements:\n")
	if uncertainty {
		b.WriteString("- p10[i] <= p50[i] <= p90[i] for every i\n")
	}
	fmt.Fprintf(&b, "- Every array has exactly %d elements\n", horizon)
	b.WriteString("- Every value is a finite number consistent with the context\n\n")
	b.WriteString("Return ONLY the JSON object, without markdown or commentary.")

	return b.String()
}

// Trend labels a series by comparing the means of its two halves.
func Trend(values []float64) string {
	half := len(values) / 2
	if half == 0 {
		return TrendStable
	}
	first := stat.Mean(values[:half], nil)
	second := stat.Mean(values[half:], nil)
	switch {
	case second > first*trendUpRatio:
		return TrendIncreasing
	case second < first*trendDownRatio:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func fmt2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
