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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawCandidate is an unvalidated oracle response object, keyed by field name.
type RawCandidate map[string]json.RawMessage

var errNotObject = errors.New("response is not a JSON object")

// ParseCandidate decodes oracle content into a RawCandidate.
// Anything other than a single JSON object is an error.
func ParseCandidate(content string) (RawCandidate, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, errNotObject
	}
	var c RawCandidate
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errNotObject
	}
	return c, nil
}

// QuantileForecast holds validated forecast arrays. P10 and P90 are nil
// unless uncertainty was requested.
type QuantileForecast struct {
	P50 []float64
	P10 []float64
	P90 []float64
}

// Outcome is the result of validating one candidate. It is either Valid or
// Invalid.
type Outcome interface {
	isOutcome()
}

// Valid carries a candidate that passed every check.
type Valid struct {
	Forecast     QuantileForecast
	QualityFlags []QualityFlag
	Notes        string
}

// Invalid carries every violation found. Violations is never empty.
type Invalid struct {
	Violations []string
}

func (Valid) isOutcome()   {}
func (Invalid) isOutcome() {}

// fieldState distinguishes an absent field from a malformed one.
type fieldState int

const (
	fieldAbsent fieldState = iota
	fieldMalformed
	fieldOK
)

// ValidateCandidate checks a candidate against the horizon and uncertainty
// setting.
//
// # Description
//
// Structural checks (presence, types, closed flag vocabulary) and arity
// checks run first and all their violations are collected. Quantile ordering
// and finiteness are only checked when the shape is sound, so an index is
// never read out of range.
//
// # Outputs
//
//   - Outcome: Valid, or Invalid listing every violation found.
func ValidateCandidate(c RawCandidate, horizon int, uncertainty bool) Outcome {
	var violations []string

	quantiles := []string{"p50", "p10", "p90"}
	arrays := make(map[string][]float64, 3)
	for _, name := range quantiles {
		isRequired := name == "p50" || uncertainty
		values, state := numericArray(c, name)
		switch state {
		case fieldAbsent:
			if isRequired {
				violations = append(violations, fmt.Sprintf("%s: required field is missing", name))
			}
		case fieldMalformed:
			violations = append(violations, fmt.Sprintf("%s: expected an array of numbers", name))
		case fieldOK:
			if len(values) != horizon {
				violations = append(violations, fmt.Sprintf("%s: length %d does not match horizon %d", name, len(values), horizon))
			}
			arrays[name] = values
		}
	}

	flags, flagViolations := qualityFlags(c)
	violations = append(violations, flagViolations...)

	notes, ok := optionalString(c, "notes")
	if !ok {
		violations = append(violations, "notes: expected a string")
	}

	if len(violations) > 0 {
		return Invalid{Violations: violations}
	}

	// Present bands are checked even when they will be dropped.
	for _, name := range quantiles {
		for i, v := range arrays[name] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				violations = append(violations, fmt.Sprintf("%s[%d]: non-finite value", name, i))
				break
			}
		}
	}

	if uncertainty {
		p10, p50, p90 := arrays["p10"], arrays["p50"], arrays["p90"]
		for i := range p50 {
			if !(p10[i] <= p50[i] && p50[i] <= p90[i]) {
				violations = append(violations, fmt.Sprintf(
					"quantile order violated at index %d: p10=%g p50=%g p90=%g", i, p10[i], p50[i], p90[i]))
				break
			}
		}
	}

	if len(violations) > 0 {
		return Invalid{Violations: violations}
	}

	fc := QuantileForecast{P50: arrays["p50"]}
	if uncertainty {
		fc.P10 = arrays["p10"]
		fc.P90 = arrays["p90"]
	}
	return Valid{Forecast: fc, QualityFlags: flags, Notes: notes}
}

// numericArray decodes c[name] as an array of JSON numbers. Out-of-range
// literals such as 1e999 decode to an infinity rather than failing, so the
// finiteness check can report them.
func numericArray(c RawCandidate, name string) ([]float64, fieldState) {
	raw, ok := c[name]
	if !ok || isNull(raw) {
		return nil, fieldAbsent
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fieldMalformed
	}
	values := make([]float64, len(elems))
	for i, elem := range elems {
		v, ok := parseNumber(elem)
		if !ok {
			return nil, fieldMalformed
		}
		values[i] = v
	}
	return values, fieldOK
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// qualityFlags decodes the optional flag list. Absent means empty.
func qualityFlags(c RawCandidate) ([]QualityFlag, []string) {
	raw, ok := c["quality_flags"]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, []string{"quality_flags: expected an array of strings"}
	}
	var (
		flags      []QualityFlag
		violations []string
	)
	for i, elem := range elems {
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			violations = append(violations, fmt.Sprintf("quality_flags[%d]: expected a string", i))
			continue
		}
		if !IsKnownQualityFlag(s) {
			violations = append(violations, fmt.Sprintf("quality_flags[%d]: unknown flag %q", i, s))
			continue
		}
		flags = append(flags, QualityFlag(s))
	}
	return flags, violations
}

func optionalString(c RawCandidate, name string) (string, bool) {
	raw, ok := c[name]
	if !ok || isNull(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
