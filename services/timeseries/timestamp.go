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
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableTimestamp is returned when no supported format matches.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

var (
	epochSecondsPattern = regexp.MustCompile(`^\d{10}$`)
	epochMillisPattern  = regexp.MustCompile(`^\d{13}$`)
)

// isoLayouts are tried before the fallback patterns. Layouts without a zone
// parse as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
}

// fallbackLayouts are tried in order. Month-first comes before day-first, so
// an ambiguous value such as 03/04/2024 is read as March 4.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
}

// ParseTimestamp converts a raw textual timestamp into an instant.
//
// # Description
//
// Formats are tried in a fixed order and the first match wins:
//  1. exactly 10 digits: epoch seconds
//  2. exactly 13 digits: epoch milliseconds
//  3. ISO-8601 (with or without zone, zone-less values are UTC)
//  4. yyyy-MM-dd HH:mm:ss, MM/dd/yyyy HH:mm:ss, dd/MM/yyyy HH:mm:ss, yyyy-MM-dd
//
// # Outputs
//
//   - time.Time: The parsed instant in UTC.
//   - error: Wraps ErrUnparseableTimestamp when nothing matches.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)

	if epochSecondsPattern.MatchString(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	if epochMillisPattern.MatchString(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, raw)
}

// ParseNumericTimestamp converts a JSON number into an instant.
//
// A whole number with exactly 13 integer digits is epoch milliseconds; any
// other finite number is epoch seconds, fractional part included.
func ParseNumericTimestamp(v float64) (time.Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseableTimestamp, v)
	}

	whole, frac := math.Modf(v)
	if frac == 0 && integerDigits(whole) == 13 {
		return time.UnixMilli(int64(whole)).UTC(), nil
	}

	sec := int64(whole)
	nsec := int64(math.Round(frac * 1e9))
	return time.Unix(sec, nsec).UTC(), nil
}

func integerDigits(v float64) int {
	return len(strconv.FormatInt(int64(math.Abs(v)), 10))
}
