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
	"errors"
	"fmt"
)

// =============================================================================
// Error Kinds
// =============================================================================

// Sentinel kinds carried by *PipelineError. Match with errors.Is.
var (
	// ErrRequestShape marks malformed or missing request fields.
	ErrRequestShape = errors.New("invalid request")

	// ErrInsufficientData marks too few usable points to proceed.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrHorizonExceeded marks a resolved horizon above the configured cap.
	ErrHorizonExceeded = errors.New("horizon exceeds maximum")

	// ErrOracle marks an oracle failure that survived the retry.
	ErrOracle = errors.New("forecast oracle failed")

	// ErrResponseValidation marks oracle output that failed validation twice.
	ErrResponseValidation = errors.New("oracle response failed validation")

	// ErrHistoryUnavailable marks a sensor history lookup that failed.
	ErrHistoryUnavailable = errors.New("sensor history unavailable")
)

// PipelineError is the only error type returned by Pipeline.Run.
//
// Kind is one of the sentinel kinds above. Details lists human-readable
// specifics such as validator violations. Cause, when set, is the
// underlying error (for example an *OracleError).
type PipelineError struct {
	Kind    error
	Message string
	Details []string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PipelineError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newPipelineError(kind error, details []string, format string, args ...any) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// =============================================================================
// Oracle Errors
// =============================================================================

// OracleReason classifies why an oracle call produced no candidate.
type OracleReason string

const (
	ReasonConfigMissing    OracleReason = "CONFIG_MISSING"
	ReasonUnreachable      OracleReason = "UNREACHABLE"
	ReasonNonSuccessStatus OracleReason = "NON_SUCCESS_STATUS"
	ReasonEmptyContent     OracleReason = "EMPTY_CONTENT"
	ReasonNonJSONContent   OracleReason = "NON_JSON_CONTENT"
)

// OracleError is returned by Oracle implementations.
type OracleError struct {
	Reason OracleReason
	Err    error
}

func (e *OracleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("oracle error: %s", e.Reason)
	}
	return fmt.Sprintf("oracle error: %s: %v", e.Reason, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Retryable reports whether a second attempt could plausibly succeed.
// Missing configuration never fixes itself between attempts.
func (e *OracleError) Retryable() bool {
	return e.Reason != ReasonConfigMissing
}
