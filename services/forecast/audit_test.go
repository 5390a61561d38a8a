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
	"testing"

	"github.com/AleutianAI/AleutianHorizon/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAuditSink_Success(t *testing.T) {
	exporter := logging.NewBufferedExporter()
	sink := NewLoggerAuditSink(logging.New(logging.Config{Quiet: true, Service: "horizon", Exporter: exporter}))

	sink.Record(AuditRecord{RunID: "fc_1", Endpoint: "/v1/timeseries/forecast", DurationMs: 12, DataPoints: 20, Horizon: 5, Success: true})

	entries := exporter.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, logging.LevelInfo, e.Level)
	assert.Equal(t, "forecast_audit", e.Message)
	assert.Equal(t, "audit", e.Attrs["component"])
	assert.Equal(t, "fc_1", e.Attrs["run_id"])
	assert.Equal(t, true, e.Attrs["success"])
	_, hasError := e.Attrs["error"]
	assert.False(t, hasError)
}

func TestLoggerAuditSink_FailureLogsError(t *testing.T) {
	exporter := logging.NewBufferedExporter()
	sink := NewLoggerAuditSink(logging.New(logging.Config{Quiet: true, Exporter: exporter}))

	sink.Record(AuditRecord{RunID: "fc_2", Success: false, Error: "horizon of 5000 steps exceeds the maximum of 2000"})

	entries := exporter.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, logging.LevelError, entries[0].Level)
	assert.Equal(t, "horizon of 5000 steps exceeds the maximum of 2000", entries[0].Attrs["error"])
}

func TestMemoryAuditSink_RecordsReturnsCopy(t *testing.T) {
	sink := &MemoryAuditSink{}
	sink.Record(AuditRecord{RunID: "a"})

	records := sink.Records()
	records[0].RunID = "mutated"

	assert.Equal(t, "a", sink.Records()[0].RunID)
}
