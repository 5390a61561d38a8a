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
	"sync"

	"github.com/AleutianAI/AleutianHorizon/pkg/logging"
)

// AuditRecord is emitted exactly once per forecast request.
type AuditRecord struct {
	RunID      string `json:"run_id"`
	Endpoint   string `json:"endpoint"`
	DurationMs int64  `json:"duration_ms"`
	DataPoints int    `json:"data_points"`
	Horizon    int    `json:"horizon"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// AuditSink receives audit records. Implementations must be safe for
// concurrent use.
type AuditSink interface {
	Record(rec AuditRecord)
}

// LoggerAuditSink writes each record as a structured log line. When the
// logger has an exporter configured, records reach it as well.
type LoggerAuditSink struct {
	logger *logging.Logger
}

func NewLoggerAuditSink(logger *logging.Logger) *LoggerAuditSink {
	return &LoggerAuditSink{logger: logger.With("component", "audit")}
}

func (s *LoggerAuditSink) Record(rec AuditRecord) {
	args := []any{
		"run_id", rec.RunID,
		"endpoint", rec.Endpoint,
		"duration_ms", rec.DurationMs,
		"data_points", rec.DataPoints,
		"horizon", rec.Horizon,
		"success", rec.Success,
	}
	if rec.Error != "" {
		args = append(args, "error", rec.Error)
		s.logger.Error("forecast_audit", args...)
		return
	}
	s.logger.Info("forecast_audit", args...)
}

// MemoryAuditSink keeps records in memory.
type MemoryAuditSink struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (s *MemoryAuditSink) Record(rec AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records returns a copy of everything recorded so far.
func (s *MemoryAuditSink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

type nopAuditSink struct{}

func (nopAuditSink) Record(AuditRecord) {}
