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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(t *testing.T, content string) RawCandidate {
	t.Helper()
	c, err := ParseCandidate(content)
	require.NoError(t, err)
	return c
}

func requireInvalid(t *testing.T, outcome Outcome) []string {
	t.Helper()
	inv, ok := outcome.(Invalid)
	require.True(t, ok, "expected Invalid, got %#v", outcome)
	require.NotEmpty(t, inv.Violations)
	return inv.Violations
}

func TestParseCandidate(t *testing.T) {
	_, err := ParseCandidate(`{"p50":[1]}`)
	assert.NoError(t, err)

	for _, bad := range []string{"", "[1,2,3]", "not json", `{"p50": [1,}`, "null", `"text"`} {
		_, err := ParseCandidate(bad)
		assert.Error(t, err, "content %q", bad)
	}
}

func TestValidateCandidate_ValidWithUncertainty(t *testing.T) {
	c := candidate(t, `{
		"p10": [1, 2, 3],
		"p50": [2, 3, 4],
		"p90": [3, 4, 5],
		"notes": "steady",
		"quality_flags": ["LOW_DATA"]
	}`)

	outcome := ValidateCandidate(c, 3, true)

	valid, ok := outcome.(Valid)
	require.True(t, ok, "expected Valid, got %#v", outcome)
	assert.Equal(t, []float64{2, 3, 4}, valid.Forecast.P50)
	assert.Equal(t, []float64{1, 2, 3}, valid.Forecast.P10)
	assert.Equal(t, []float64{3, 4, 5}, valid.Forecast.P90)
	assert.Equal(t, []QualityFlag{FlagLowData}, valid.QualityFlags)
	assert.Equal(t, "steady", valid.Notes)
}

func TestValidateCandidate_EqualQuantilesAllowed(t *testing.T) {
	c := candidate(t, `{"p10":[5,5],"p50":[5,5],"p90":[5,5]}`)
	_, ok := ValidateCandidate(c, 2, true).(Valid)
	assert.True(t, ok)
}

func TestValidateCandidate_PointForecastDropsBands(t *testing.T) {
	c := candidate(t, `{"p10":[0,0],"p50":[1,2],"p90":[9,9]}`)

	valid, ok := ValidateCandidate(c, 2, false).(Valid)
	require.True(t, ok)
	assert.Nil(t, valid.Forecast.P10)
	assert.Nil(t, valid.Forecast.P90)
	assert.Empty(t, valid.QualityFlags)
}

func TestValidateCandidate_ArityMismatch(t *testing.T) {
	c := candidate(t, `{"p50":[1,2,3,4]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 5, false))
	assert.Equal(t, []string{"p50: length 4 does not match horizon 5"}, violations)
}

func TestValidateCandidate_MissingRequiredFields(t *testing.T) {
	c := candidate(t, `{"p50":[1,2]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 2, true))
	assert.Contains(t, violations, "p10: required field is missing")
	assert.Contains(t, violations, "p90: required field is missing")
}

func TestValidateCandidate_NonNumericElements(t *testing.T) {
	tests := map[string]string{
		"string element": `{"p50":[1,"2"]}`,
		"not an array":   `{"p50":"1,2"}`,
		"nested array":   `{"p50":[[1],[2]]}`,
		"boolean":        `{"p50":[true,false]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			violations := requireInvalid(t, ValidateCandidate(candidate(t, content), 2, false))
			assert.Equal(t, []string{"p50: expected an array of numbers"}, violations)
		})
	}
}

func TestValidateCandidate_UnknownFlag(t *testing.T) {
	c := candidate(t, `{"p50":[1],"quality_flags":["LOW_DATA","SUNSPOTS"]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 1, false))
	assert.Equal(t, []string{`quality_flags[1]: unknown flag "SUNSPOTS"`}, violations)
}

func TestValidateCandidate_NotesMustBeString(t *testing.T) {
	c := candidate(t, `{"p50":[1],"notes":42}`)
	violations := requireInvalid(t, ValidateCandidate(c, 1, false))
	assert.Equal(t, []string{"notes: expected a string"}, violations)
}

func TestValidateCandidate_CollectsEveryStructuralViolation(t *testing.T) {
	c := candidate(t, `{"p50":[1,2],"p10":[1],"quality_flags":"LOW_DATA"}`)

	violations := requireInvalid(t, ValidateCandidate(c, 3, true))
	assert.Len(t, violations, 4)
	assert.Contains(t, violations, "p50: length 2 does not match horizon 3")
	assert.Contains(t, violations, "p10: length 1 does not match horizon 3")
	assert.Contains(t, violations, "p90: required field is missing")
	assert.Contains(t, violations, "quality_flags: expected an array of strings")
}

func TestValidateCandidate_OrderingViolation(t *testing.T) {
	c := candidate(t, `{"p10":[1,5,1],"p50":[2,4,2],"p90":[3,6,3]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 3, true))
	require.Len(t, violations, 1)
	assert.True(t, strings.HasPrefix(violations[0], "quantile order violated at index 1"), violations[0])
}

func TestValidateCandidate_OrderingSkippedWhenShapeFails(t *testing.T) {
	// p90 is short, so indexing it during the ordering pass would be unsafe.
	c := candidate(t, `{"p10":[9,9,9],"p50":[1,1,1],"p90":[0]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 3, true))
	assert.Equal(t, []string{"p90: length 1 does not match horizon 3"}, violations)
}

func TestValidateCandidate_NonFinite(t *testing.T) {
	c := candidate(t, `{"p50":[1, 1e999, 3]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 3, false))
	assert.Equal(t, []string{"p50[1]: non-finite value"}, violations)
}

func TestValidateCandidate_NonFiniteBandRejectedWithoutUncertainty(t *testing.T) {
	c := candidate(t, `{"p10":[0, -1e999],"p50":[1,2],"p90":[1e999, 9]}`)

	violations := requireInvalid(t, ValidateCandidate(c, 2, false))
	assert.Equal(t, []string{"p10[1]: non-finite value", "p90[0]: non-finite value"}, violations)
}

func TestValidateCandidate_AbsentFlagsMeansEmpty(t *testing.T) {
	c := candidate(t, `{"p50":[1],"quality_flags":null}`)
	valid, ok := ValidateCandidate(c, 1, false).(Valid)
	require.True(t, ok)
	assert.Empty(t, valid.QualityFlags)
}
