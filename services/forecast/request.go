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
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
)

// ResampleAuto selects the bucket width from the frequency profile.
const ResampleAuto = "AUTO"

// HorizonMode says whether the horizon is given in steps or as a duration.
type HorizonMode string

const (
	HorizonSteps HorizonMode = "STEPS"
	HorizonTime  HorizonMode = "TIME"
)

// HorizonUnit is the unit of a duration horizon.
type HorizonUnit string

const (
	UnitMinute HorizonUnit = "min"
	UnitHour   HorizonUnit = "hour"
	UnitDay    HorizonUnit = "day"
)

var unitSeconds = map[HorizonUnit]float64{
	UnitMinute: 60,
	UnitHour:   3600,
	UnitDay:    86400,
}

// HorizonDuration is a horizon expressed as a span of time.
type HorizonDuration struct {
	Value float64     `json:"value"`
	Unit  HorizonUnit `json:"unit"`
}

// Settings is the run configuration echoed back in every result.
type Settings struct {
	SensorID      string                   `json:"sensor_id,omitempty"`
	ResampleFreq  string                   `json:"resample_freq"`
	Aggregation   timeseries.Aggregation   `json:"aggregation,omitempty"`
	MissingPolicy timeseries.MissingPolicy `json:"missing_policy"`
	OutlierPolicy timeseries.OutlierPolicy `json:"outlier_policy"`
	HorizonMode   HorizonMode              `json:"horizon_mode"`
	HorizonSteps  int                      `json:"horizon_steps,omitempty"`
	HorizonTime   *HorizonDuration         `json:"horizon_time,omitempty"`
	Uncertainty   bool                     `json:"uncertainty"`
}

// withDefaults fills unset policies: AUTO width, MEAN aggregation, LINEAR
// filling, no clipping and a step horizon.
func (s Settings) withDefaults() Settings {
	if s.ResampleFreq == "" {
		s.ResampleFreq = ResampleAuto
	}
	if s.Aggregation == "" {
		s.Aggregation = timeseries.AggregationMean
	}
	if s.MissingPolicy == "" {
		s.MissingPolicy = timeseries.MissingLinear
	}
	if s.OutlierPolicy == "" {
		s.OutlierPolicy = timeseries.OutliersOff
	}
	if s.HorizonMode == "" {
		s.HorizonMode = HorizonSteps
	}
	return s
}

// Request is one forecast invocation.
type Request struct {
	Settings Settings
	Readings []timeseries.Reading

	// Endpoint names the caller surface in the audit record.
	Endpoint string
}

// resolveBucketWidth turns ResampleFreq into seconds. profile may be nil
// when fewer than two timestamps are available and a fixed width was given.
func resolveBucketWidth(freq string, profile *timeseries.FrequencyProfile) (int64, error) {
	if strings.EqualFold(freq, ResampleAuto) {
		if profile == nil {
			return 0, newPipelineError(ErrInsufficientData, nil,
				"at least 2 timestamps are required to detect the sampling frequency")
		}
		return profile.SuggestedBucketWidth, nil
	}
	width, err := timeseries.BucketWidthForLabel(freq)
	if err != nil {
		return 0, newPipelineError(ErrRequestShape, nil, "unsupported resample_freq %q", freq)
	}
	return width, nil
}

// resolveHorizon returns the step count for s at the given bucket width.
// Duration horizons round up so the forecast covers the whole span.
func resolveHorizon(s Settings, widthSeconds int64) (int, error) {
	switch s.HorizonMode {
	case HorizonSteps:
		if s.HorizonSteps < 1 {
			return 0, newPipelineError(ErrRequestShape, nil, "horizon_steps must be a positive integer")
		}
		return s.HorizonSteps, nil
	case HorizonTime:
		if s.HorizonTime == nil {
			return 0, newPipelineError(ErrRequestShape, nil, "horizon_time is required when horizon_mode is TIME")
		}
		perUnit, ok := unitSeconds[s.HorizonTime.Unit]
		if !ok {
			return 0, newPipelineError(ErrRequestShape, nil, "unsupported horizon_time unit %q", s.HorizonTime.Unit)
		}
		if !(s.HorizonTime.Value > 0) || math.IsInf(s.HorizonTime.Value, 0) {
			return 0, newPipelineError(ErrRequestShape, nil, "horizon_time value must be positive")
		}
		steps := math.Ceil(s.HorizonTime.Value * perUnit / float64(widthSeconds))
		if steps > math.MaxInt32 {
			steps = math.MaxInt32
		}
		return int(steps), nil
	default:
		return 0, newPipelineError(ErrRequestShape, nil, "unsupported horizon_mode %q", s.HorizonMode)
	}
}

// forecastTimestamps returns horizon timestamps spaced one bucket apart,
// starting one bucket after last.
func forecastTimestamps(last time.Time, widthSeconds int64, horizon int) []time.Time {
	step := time.Duration(widthSeconds) * time.Second
	out := make([]time.Time, horizon)
	for i := range out {
		out[i] = last.Add(time.Duration(i+1) * step).UTC()
	}
	return out
}
