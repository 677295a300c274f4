// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the personalization service.
//
// Description:
//
//	Provides counters and histograms for recommendation serving, event
//	ingestion, experiment activity, quality assessment, and monitoring.
//	All metrics use the "personalize_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Recommendation Metrics ---

	// RecommendationsTotal counts recommendation requests by status.
	RecommendationsTotal metric.Int64Counter

	// RecommendationDuration records recommendation latency in seconds.
	RecommendationDuration metric.Float64Histogram

	// --- Ingestion Metrics ---

	// EventsIngestedTotal counts interaction events ingested by type.
	EventsIngestedTotal metric.Int64Counter

	// --- Experiment Metrics ---

	// ExperimentAssignmentsTotal counts variant assignments by test.
	ExperimentAssignmentsTotal metric.Int64Counter

	// ExperimentResultsTotal counts recorded experiment results by test.
	ExperimentResultsTotal metric.Int64Counter

	// --- Quality Metrics ---

	// QualityAssessmentsTotal counts image quality assessments by tool.
	QualityAssessmentsTotal metric.Int64Counter

	// QualityScore records overall quality scores.
	QualityScore metric.Float64Histogram

	// --- Monitoring Metrics ---

	// AlertsFiredTotal counts alerts fired by severity.
	AlertsFiredTotal metric.Int64Counter

	// --- Error Metrics ---

	// ErrorsTotal counts errors by component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers all pre-defined metrics with the provided meter.
//
// Outputs:
//
//	*Metrics - All counters and histograms initialized.
//	error - Non-nil if any metric registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RecommendationsTotal, err = meter.Int64Counter(
		"personalize_recommendations_total",
		metric.WithDescription("Total recommendation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendations_total: %w", err)
	}

	m.RecommendationDuration, err = meter.Float64Histogram(
		"personalize_recommendation_duration_seconds",
		metric.WithDescription("Recommendation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recommendation_duration: %w", err)
	}

	m.EventsIngestedTotal, err = meter.Int64Counter(
		"personalize_events_ingested_total",
		metric.WithDescription("Total interaction events ingested"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_ingested_total: %w", err)
	}

	m.ExperimentAssignmentsTotal, err = meter.Int64Counter(
		"personalize_experiment_assignments_total",
		metric.WithDescription("Total experiment variant assignments"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create experiment_assignments_total: %w", err)
	}

	m.ExperimentResultsTotal, err = meter.Int64Counter(
		"personalize_experiment_results_total",
		metric.WithDescription("Total experiment results recorded"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create experiment_results_total: %w", err)
	}

	m.QualityAssessmentsTotal, err = meter.Int64Counter(
		"personalize_quality_assessments_total",
		metric.WithDescription("Total image quality assessments"),
		metric.WithUnit("{assessment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create quality_assessments_total: %w", err)
	}

	m.QualityScore, err = meter.Float64Histogram(
		"personalize_quality_score",
		metric.WithDescription("Overall quality scores"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create quality_score: %w", err)
	}

	m.AlertsFiredTotal, err = meter.Int64Counter(
		"personalize_alerts_fired_total",
		metric.WithDescription("Total monitoring alerts fired"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create alerts_fired_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"personalize_errors_total",
		metric.WithDescription("Total errors by component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
