// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/forecast"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// forecastValidate reports field names by their JSON tag so violations read
// like the request body.
var forecastValidate *validator.Validate

func init() {
	forecastValidate = validator.New()
	forecastValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// =============================================================================
// Request Types
// =============================================================================

// RawTimestamp is a timestamp as sent by the client: an ISO-8601 style
// string or a Unix number (seconds, or milliseconds for 13-digit values).
type RawTimestamp struct {
	Text   string
	Number *float64
}

// UnmarshalJSON accepts a JSON string or number.
func (r *RawTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = RawTimestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawTimestamp{Text: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("timestamp must be a string or a number")
	}
	*r = RawTimestamp{Number: &f}
	return nil
}

// MarshalJSON writes back the form that was received.
func (r RawTimestamp) MarshalJSON() ([]byte, error) {
	if r.Number != nil {
		return json.Marshal(*r.Number)
	}
	return json.Marshal(r.Text)
}

// IsZero reports whether no timestamp was supplied.
func (r RawTimestamp) IsZero() bool {
	return r.Number == nil && strings.TrimSpace(r.Text) == ""
}

// Time parses the timestamp. Zone-less strings are read as UTC.
func (r RawTimestamp) Time() (time.Time, error) {
	if r.Number != nil {
		return timeseries.ParseNumericTimestamp(*r.Number)
	}
	return timeseries.ParseTimestamp(r.Text)
}

// DataPoint is one inline reading. A null or absent value is a missing
// reading and is filled by the missing policy.
type DataPoint struct {
	Timestamp RawTimestamp `json:"timestamp"`
	Value     *float64     `json:"value"`
	SensorID  string       `json:"sensor_id,omitempty" validate:"omitempty,max=128"`
}

// HorizonTime is a horizon given as a span of time.
type HorizonTime struct {
	Value float64 `json:"value" validate:"gt=0"`
	Unit  string  `json:"unit" validate:"required,oneof=min hour day"`
}

// ForecastRequest is the body of POST /v1/timeseries/forecast.
//
// # Description
//
// Carries the readings and the run settings. Omitted policies take their
// defaults: AUTO resampling, MEAN aggregation, LINEAR filling, no outlier
// clipping and a STEPS horizon.
//
// # Validation
//
// Uses go-playground/validator:
//   - data: required, 1-100000 elements
//   - resample_freq: AUTO or a supported bucket label
//   - horizon_steps: required unless horizon_mode is TIME
//   - horizon_time: required when horizon_mode is TIME
//
// Timestamps are checked separately by ToPipelineRequest because they
// accept two JSON types.
type ForecastRequest struct {
	Data          []DataPoint  `json:"data" validate:"required,min=1,max=100000,dive"`
	SensorID      string       `json:"sensor_id,omitempty" validate:"omitempty,max=128"`
	ResampleFreq  string       `json:"resample_freq" validate:"omitempty,oneof=AUTO 1s 5s 10s 30s 1m 5m 15m 1h 1d"`
	Aggregation   string       `json:"aggregation,omitempty" validate:"omitempty,oneof=MEAN LAST"`
	MissingPolicy string       `json:"missing_policy" validate:"omitempty,oneof=LINEAR FFILL DROP"`
	OutlierPolicy string       `json:"outlier_policy" validate:"omitempty,oneof=OFF WINSORIZE_P1_P99"`
	HorizonMode   string       `json:"horizon_mode" validate:"omitempty,oneof=STEPS TIME"`
	HorizonSteps  int          `json:"horizon_steps,omitempty" validate:"required_unless=HorizonMode TIME,gte=0"`
	HorizonTime   *HorizonTime `json:"horizon_time,omitempty" validate:"required_if=HorizonMode TIME"`
	Uncertainty   bool         `json:"uncertainty"`
}

// Validate runs the struct tags.
func (r *ForecastRequest) Validate() error {
	return forecastValidate.Struct(r)
}

// Settings returns the run settings carried by the request.
func (r *ForecastRequest) Settings() forecast.Settings {
	s := forecast.Settings{
		SensorID:      r.SensorID,
		ResampleFreq:  r.ResampleFreq,
		Aggregation:   timeseries.Aggregation(r.Aggregation),
		MissingPolicy: timeseries.MissingPolicy(r.MissingPolicy),
		OutlierPolicy: timeseries.OutlierPolicy(r.OutlierPolicy),
		HorizonMode:   forecast.HorizonMode(r.HorizonMode),
		HorizonSteps:  r.HorizonSteps,
		Uncertainty:   r.Uncertainty,
	}
	if r.HorizonTime != nil {
		s.HorizonTime = &forecast.HorizonDuration{
			Value: r.HorizonTime.Value,
			Unit:  forecast.HorizonUnit(r.HorizonTime.Unit),
		}
	}
	return s
}

// ToPipelineRequest validates the request and converts it for the pipeline.
//
// # Outputs
//
//   - forecast.Request: Ready to run.
//   - []string: Human-readable violations. Non-empty means the request
//     must be rejected and the returned forecast.Request is unusable.
func (r *ForecastRequest) ToPipelineRequest(endpoint string) (forecast.Request, []string) {
	if err := r.Validate(); err != nil {
		return forecast.Request{}, ValidationDetails(err)
	}

	var details []string
	readings := make([]timeseries.Reading, 0, len(r.Data))
	for i, dp := range r.Data {
		if dp.Timestamp.IsZero() {
			details = append(details, fmt.Sprintf("data[%d].timestamp: is required", i))
			continue
		}
		ts, err := dp.Timestamp.Time()
		if err != nil {
			details = append(details, fmt.Sprintf("data[%d].timestamp: %v", i, err))
			continue
		}
		reading := timeseries.Reading{Timestamp: ts, SensorID: dp.SensorID, Missing: dp.Value == nil}
		if dp.Value != nil {
			reading.Value = *dp.Value
		}
		readings = append(readings, reading)
	}
	if len(details) > 0 {
		return forecast.Request{}, details
	}

	return forecast.Request{
		Settings: r.Settings(),
		Readings: readings,
		Endpoint: endpoint,
	}, nil
}

// SensorForecastRequest is the body of POST /v1/sensors/:sensor_id/forecast.
// History is loaded from storage over the lookback window.
type SensorForecastRequest struct {
	Lookback      string       `json:"lookback"`
	ResampleFreq  string       `json:"resample_freq" validate:"omitempty,oneof=AUTO 1s 5s 10s 30s 1m 5m 15m 1h 1d"`
	Aggregation   string       `json:"aggregation,omitempty" validate:"omitempty,oneof=MEAN LAST"`
	MissingPolicy string       `json:"missing_policy" validate:"omitempty,oneof=LINEAR FFILL DROP"`
	OutlierPolicy string       `json:"outlier_policy" validate:"omitempty,oneof=OFF WINSORIZE_P1_P99"`
	HorizonMode   string       `json:"horizon_mode" validate:"omitempty,oneof=STEPS TIME"`
	HorizonSteps  int          `json:"horizon_steps,omitempty" validate:"required_unless=HorizonMode TIME,gte=0"`
	HorizonTime   *HorizonTime `json:"horizon_time,omitempty" validate:"required_if=HorizonMode TIME"`
	Uncertainty   bool         `json:"uncertainty"`
}

// DefaultLookback is the history window loaded when none is given.
const DefaultLookback = 24 * time.Hour

// Validate runs the struct tags and checks the lookback duration.
func (r *SensorForecastRequest) Validate() error {
	if err := forecastValidate.Struct(r); err != nil {
		return err
	}
	_, err := r.LookbackDuration()
	return err
}

// LookbackDuration parses Lookback, defaulting to DefaultLookback.
func (r *SensorForecastRequest) LookbackDuration() (time.Duration, error) {
	if r.Lookback == "" {
		return DefaultLookback, nil
	}
	d, err := time.ParseDuration(r.Lookback)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("lookback: must be a positive duration such as 6h")
	}
	return d, nil
}

// Settings returns the run settings for sensorID.
func (r *SensorForecastRequest) Settings(sensorID string) forecast.Settings {
	inline := ForecastRequest{
		SensorID:      sensorID,
		ResampleFreq:  r.ResampleFreq,
		Aggregation:   r.Aggregation,
		MissingPolicy: r.MissingPolicy,
		OutlierPolicy: r.OutlierPolicy,
		HorizonMode:   r.HorizonMode,
		HorizonSteps:  r.HorizonSteps,
		HorizonTime:   r.HorizonTime,
		Uncertainty:   r.Uncertainty,
	}
	return inline.Settings()
}

// ValidationDetails turns a validator error into readable violations such
// as "data[2].sensor_id: must be at most 128".
func ValidationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		details = append(details, fmt.Sprintf("%s: %s", field, describeTag(fe)))
	}
	return details
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must have at least " + fe.Param() + " elements"
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// =============================================================================
// Response Types
// =============================================================================

// ForecastResponse is the success envelope. The result fields are inlined.
type ForecastResponse struct {
	Success bool `json:"success"`
	*forecast.Result
}

// ProfileResponse is the success envelope of the profile endpoint. The
// profile fields are inlined.
type ProfileResponse struct {
	Success bool `json:"success"`
	timeseries.DatasetProfile
}

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// NewErrorResponse builds a failure envelope.
func NewErrorResponse(message string, details ...string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message, Details: details}
}
