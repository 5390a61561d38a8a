// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided identifiers before they are
// embedded in storage queries.
//
// Sensor ids end up inside Flux string literals, so anything outside a
// conservative character set is rejected rather than escaped.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSensorIDLength bounds sensor identifiers.
const MaxSensorIDLength = 128

// sensorIDPattern matches device-style identifiers such as "pump-07",
// "site1.boiler_a" or "plant:line3:temp".
var sensorIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]{0,127}$`)

// ValidateSensorID validates a sensor identifier to prevent Flux injection.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters, digits, underscores, dots, colons and hyphens
//   - Start with a letter or digit
//
// Example:
//
//	if err := validation.ValidateSensorID(id); err != nil {
//	    return nil, fmt.Errorf("invalid sensor id: %w", err)
//	}
//	// Safe to use in a Flux query
func ValidateSensorID(id string) error {
	if id == "" {
		return fmt.Errorf("sensor id cannot be empty")
	}
	if len(id) > MaxSensorIDLength {
		return fmt.Errorf("sensor id is %d characters, the maximum is %d", len(id), MaxSensorIDLength)
	}
	if !sensorIDPattern.MatchString(id) {
		return fmt.Errorf("invalid sensor id format: %q (letters, digits, '_', '.', ':' and '-' only)", id)
	}
	return nil
}

// SanitizeSensorID trims surrounding whitespace and validates the result.
// Case is preserved because sensor ids are case sensitive in storage.
func SanitizeSensorID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateSensorID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
