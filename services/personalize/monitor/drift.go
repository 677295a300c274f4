// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"fmt"

	"github.com/AleutianAI/AleutianStudio/services/personalize/stats"
)

// defaultDriftThreshold is the KS statistic above which a feature
// counts as drifting.
const defaultDriftThreshold = 0.3

// driftHistogramBins is the bin count of the report histograms.
const driftHistogramBins = 10

// Drift severity bands on the KS statistic.
const (
	driftWarningBand  = 0.5
	driftCriticalBand = 0.7
)

// DriftReport is the result of one drift check.
type DriftReport struct {
	Feature            string   `json:"feature"`
	Statistic          float64  `json:"statistic"`
	PValue             float64  `json:"p_value"`
	Threshold          float64  `json:"threshold"`
	IsDrifting         bool     `json:"is_drifting"`
	Severity           Severity `json:"severity,omitempty"`
	CurrentHistogram   []int    `json:"current_histogram"`
	ReferenceHistogram []int    `json:"reference_histogram"`
}

// DetectDataDrift compares the current sample of a feature against its
// reference distribution.
//
// # Description
//
// Computes the two-sample Kolmogorov-Smirnov statistic and approximate
// p-value, plus a 10-bin histogram of each sample. The feature is
// drifting when the statistic exceeds the monitor's threshold; a
// drifting feature raises a throttled alert graded info, warning, or
// critical by statistic band.
func (m *Monitor) DetectDataDrift(feature string, current, reference []float64) DriftReport {
	stat, p := stats.KolmogorovSmirnov(current, reference)

	report := DriftReport{
		Feature:            feature,
		Statistic:          stat,
		PValue:             p,
		Threshold:          m.driftThreshold,
		IsDrifting:         stat > m.driftThreshold,
		CurrentHistogram:   stats.Histogram(current, driftHistogramBins),
		ReferenceHistogram: stats.Histogram(reference, driftHistogramBins),
	}

	if report.IsDrifting {
		report.Severity = driftSeverity(stat)
		m.fireAlert("drift:"+feature, "", report.Severity,
			fmt.Sprintf("feature %s drifting: ks=%.3f p=%.4f", feature, stat, p))
		m.logger.Warn("data drift detected",
			"feature", feature, "statistic", stat, "p_value", p,
			"severity", report.Severity)
	}
	return report
}

// driftSeverity grades a drifting KS statistic.
func driftSeverity(stat float64) Severity {
	switch {
	case stat >= driftCriticalBand:
		return SeverityCritical
	case stat >= driftWarningBand:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
