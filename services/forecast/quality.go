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

// QualityFlag is an advisory annotation about data or forecast reliability.
// Flags never affect correctness.
type QualityFlag string

const (
	FlagLowData              QualityFlag = "LOW_DATA"
	FlagHighMissing          QualityFlag = "HIGH_MISSING"
	FlagIrregularSampling    QualityFlag = "IRREGULAR_SAMPLING"
	FlagOutliersPresent      QualityFlag = "OUTLIERS_PRESENT"
	FlagLongHorizonUncertain QualityFlag = "LONG_HORIZON_UNCERTAIN"
	FlagRegimeShiftDetected  QualityFlag = "REGIME_SHIFT_DETECTED"
)

// QualityFlagVocabulary is the closed set of flags, in canonical order.
var QualityFlagVocabulary = []QualityFlag{
	FlagLowData,
	FlagHighMissing,
	FlagIrregularSampling,
	FlagOutliersPresent,
	FlagLongHorizonUncertain,
	FlagRegimeShiftDetected,
}

// IsKnownQualityFlag reports whether s belongs to the vocabulary.
func IsKnownQualityFlag(s string) bool {
	for _, f := range QualityFlagVocabulary {
		if string(f) == s {
			return true
		}
	}
	return false
}

// Thresholds for locally derived flags.
const (
	lowDataPoints           = 50
	highMissingFraction     = 0.2
	irregularSamplingPct    = 10.0
	longHorizonContextRatio = 0.5
)

// dataQuality is what the pipeline observed while cleaning a series.
type dataQuality struct {
	contextPoints   int
	missingFraction float64
	irregularityPct float64
	clipped         int
	horizon         int
}

func (q dataQuality) flags() []QualityFlag {
	var flags []QualityFlag
	if q.contextPoints < lowDataPoints {
		flags = append(flags, FlagLowData)
	}
	if q.missingFraction > highMissingFraction {
		flags = append(flags, FlagHighMissing)
	}
	if q.irregularityPct > irregularSamplingPct {
		flags = append(flags, FlagIrregularSampling)
	}
	if q.clipped > 0 {
		flags = append(flags, FlagOutliersPresent)
	}
	if float64(q.horizon) > float64(q.contextPoints)*longHorizonContextRatio {
		flags = append(flags, FlagLongHorizonUncertain)
	}
	return flags
}

// mergeFlags returns the union of the given sets in vocabulary order.
func mergeFlags(sets ...[]QualityFlag) []QualityFlag {
	seen := make(map[QualityFlag]bool)
	for _, set := range sets {
		for _, f := range set {
			seen[f] = true
		}
	}
	merged := make([]QualityFlag, 0, len(seen))
	for _, f := range QualityFlagVocabulary {
		if seen[f] {
			merged = append(merged, f)
		}
	}
	return merged
}
