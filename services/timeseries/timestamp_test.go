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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"epoch seconds", "1700000000", time.Unix(1700000000, 0).UTC()},
		{"epoch millis", "1700000000123", time.UnixMilli(1700000000123).UTC()},
		{"rfc3339 utc", "2024-03-01T12:30:00Z", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-03-01T12:30:00+02:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 fractional", "2024-03-01T12:30:00.250Z", time.Date(2024, 3, 1, 12, 30, 0, 250_000_000, time.UTC)},
		{"iso without zone is utc", "2024-03-01T12:30:00", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"iso minutes only", "2024-03-01T12:30", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"space separated", "2024-03-01 12:30:45", time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)},
		{"date only", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", "  1700000000 ", time.Unix(1700000000, 0).UTC()},
		{"us date", "12/25/2024 08:00:00", time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC)},
		{"eu date when us impossible", "25/12/2024 08:00:00", time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// Ambiguous day/month values resolve month-first.
func TestParseTimestamp_AmbiguousDatePrefersMonthFirst(t *testing.T) {
	got, err := ParseTimestamp("03/04/2024 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 4, got.Day())
}

func TestParseTimestamp_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "12345", "2024-13-45", "99/99/2024 00:00:00"} {
		_, err := ParseTimestamp(raw)
		assert.True(t, errors.Is(err, ErrUnparseableTimestamp), "raw %q", raw)
	}
}

func TestParseNumericTimestamp(t *testing.T) {
	t.Run("seconds", func(t *testing.T) {
		got, err := ParseNumericTimestamp(1700000000)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), got.Unix())
	})

	t.Run("thirteen digits are millis", func(t *testing.T) {
		got, err := ParseNumericTimestamp(1700000000123)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000123), got.UnixMilli())
	})

	t.Run("fractional seconds", func(t *testing.T) {
		got, err := ParseNumericTimestamp(1700000000.5)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000500), got.UnixMilli())
	})

	t.Run("nan rejected", func(t *testing.T) {
		_, err := ParseNumericTimestamp(nan())
		assert.ErrorIs(t, err, ErrUnparseableTimestamp)
	})
}
