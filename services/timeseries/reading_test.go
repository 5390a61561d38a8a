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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortReadings_StableAndCopies(t *testing.T) {
	in := []Reading{
		{Timestamp: at(120), Value: 3},
		{Timestamp: at(0), Value: 1},
		{Timestamp: at(120), Value: 4},
	}

	out := SortReadings(in)

	assert.Equal(t, []float64{1, 3, 4}, UsableValues(out))
	assert.Equal(t, 3.0, in[0].Value, "input is untouched")
}

func TestFilterSensor(t *testing.T) {
	in := []Reading{
		{Timestamp: at(0), SensorID: "a"},
		{Timestamp: at(60), SensorID: "b"},
		{Timestamp: at(120)},
	}

	assert.Len(t, FilterSensor(in, ""), 3)

	got := FilterSensor(in, "a")
	assert.Equal(t, []time.Time{at(0), at(120)}, Timestamps(got), "unlabelled readings are kept")

	assert.Equal(t, []time.Time{at(120)}, Timestamps(FilterSensor(in, "zzz")))
}

func TestSensors_FirstSeenOrder(t *testing.T) {
	in := []Reading{{SensorID: "b"}, {}, {SensorID: "a"}, {SensorID: "b"}}
	assert.Equal(t, []string{"b", "a"}, Sensors(in))
	assert.Nil(t, Sensors([]Reading{{}}))
}
