// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconBullet} {
		if got := icon.Render(); !strings.Contains(got, string(icon)) {
			t.Errorf("Render() = %q, want it to contain %q", got, icon)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_MachinePrefixes(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMachine)

	p.Title("ignored")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.Info("plain")
	p.Field("Row Count", "60")
	p.Box("Forecast", "5 steps")
	p.WarningBox("Quality", "LOW_DATA")

	want := "OK: done\n" +
		"WARN: careful\n" +
		"ERROR: broken\n" +
		"plain\n" +
		"row_count=60\n" +
		"Forecast: 5 steps\n" +
		"WARN Quality: LOW_DATA\n"
	if got := buf.String(); got != want {
		t.Errorf("machine output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrinter_StandardIncludesIcons(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityStandard)

	p.Title("Profile")
	p.Success("done")
	p.Error("broken")
	p.Field("Rows", "60")

	out := buf.String()
	for _, want := range []string{"Profile", "✓", "done", "✗", "broken", "Rows:", "60"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_MinimalSkipsStyling(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMinimal)

	p.Warning("careful")

	if got := buf.String(); !strings.Contains(got, "⚠") || !strings.Contains(got, "careful") {
		t.Errorf("unexpected minimal warning %q", got)
	}
	if p.Level() != PersonalityMinimal {
		t.Errorf("Level() = %q", p.Level())
	}
}

func TestPrinter_BoxWrapsContent(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, PersonalityStandard).Box("Forecast", "5 steps")

	out := buf.String()
	if !strings.Contains(out, "Forecast") || !strings.Contains(out, "5 steps") {
		t.Errorf("box lost its content:\n%s", out)
	}
	if !strings.Contains(out, "╭") {
		t.Errorf("expected a rounded border:\n%s", out)
	}
}

func TestPrinter_TableMachine(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, PersonalityMachine).Table(
		[]string{"timestamp", "p50"},
		[][]string{{"2024-01-01T00:00:00Z", "1.5"}, {"2024-01-01T00:01:00Z", "2"}},
	)

	want := "timestamp\tp50\n2024-01-01T00:00:00Z\t1.5\n2024-01-01T00:01:00Z\t2\n"
	if got := buf.String(); got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestPrinter_TableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, PersonalityStandard).Table(
		[]string{"step", "p50"},
		[][]string{{"1", "10.25"}, {"100", "9"}},
	)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %d lines:\n%s", len(lines), buf.String())
	}
	col := strings.Index(lines[1], "10.25")
	if col < 0 || strings.Index(lines[2], "9") != col {
		t.Errorf("second column is not aligned:\n%s", buf.String())
	}
}
