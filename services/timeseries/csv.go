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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// missingMarkers are value cells treated as an explicit missing reading.
var missingMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"na":   {},
}

// CSVResult holds the readings parsed from a CSV upload.
//
// Readings are sorted by timestamp. Errors holds one human-readable entry
// per rejected row; parsing continues past bad rows.
type CSVResult struct {
	Readings []Reading
	Sensors  []string
	Errors   []string
}

// ParseCSV reads `timestamp,value` or `timestamp,sensor_id,value` rows.
//
// # Description
//
// Columns are located by header name (case-insensitive), so column order
// does not matter. Blank lines are skipped. Value cells holding an explicit
// missing marker (empty, NaN, null, NA) produce a reading with Missing set;
// any other unparseable value or timestamp rejects the row.
//
// # Outputs
//
//   - CSVResult: Parsed readings, distinct sensors, per-row errors.
//   - error: Non-nil when the header is unreadable or lacks required columns.
func ParseCSV(r io.Reader) (CSVResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return CSVResult{}, fmt.Errorf("csv is empty")
		}
		return CSVResult{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	tsCol, valCol, sensorCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "timestamp":
			tsCol = i
		case "value":
			valCol = i
		case "sensor_id":
			sensorCol = i
		}
	}
	if tsCol < 0 || valCol < 0 {
		return CSVResult{}, fmt.Errorf("csv header must contain timestamp and value columns")
	}

	var res CSVResult
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", row, err))
			continue
		}
		if tsCol >= len(record) || valCol >= len(record) {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: expected %d columns, got %d", row, len(header), len(record)))
			continue
		}

		ts, err := ParseTimestamp(record[tsCol])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Invalid timestamp %q", row, record[tsCol]))
			continue
		}

		value, missing, err := parseValueCell(record[valCol])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Invalid value %q", row, record[valCol]))
			continue
		}

		reading := Reading{Timestamp: ts, Value: value, Missing: missing}
		if sensorCol >= 0 && sensorCol < len(record) {
			reading.SensorID = strings.TrimSpace(record[sensorCol])
		}
		res.Readings = append(res.Readings, reading)
	}

	res.Readings = SortReadings(res.Readings)
	res.Sensors = Sensors(res.Readings)
	return res, nil
}

// parseValueCell reports missing=true for an explicit missing marker.
func parseValueCell(cell string) (value float64, missing bool, err error) {
	s := strings.TrimSpace(cell)
	if _, ok := missingMarkers[strings.ToLower(s)]; ok {
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("value out of range")
	}
	return v, false, nil
}
