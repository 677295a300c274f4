// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package experiment runs controlled A/B tests: config lifecycle,
// deterministic variant assignment, append-only result recording, and
// statistical analysis against a designated control variant.
package experiment

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// configValidate validates experiment configs at creation.
var configValidate = validator.New()

// =============================================================================
// Lifecycle
// =============================================================================

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Verdict is the analysis outcome of an experiment.
type Verdict string

const (
	// VerdictRunning means the experiment has not yet collected enough
	// evidence either way.
	VerdictRunning Verdict = "running"

	// VerdictConclusive means at least one variant shows a significant
	// metric with a positive combined score.
	VerdictConclusive Verdict = "conclusive"

	// VerdictInconclusive means the experiment collected a large sample
	// with no significant winner.
	VerdictInconclusive Verdict = "inconclusive"
)

// =============================================================================
// Configuration
// =============================================================================

// Variant is one treatment arm of an experiment.
type Variant struct {
	ID      string             `json:"id" validate:"required"`
	Name    string             `json:"name,omitempty"`
	Control bool               `json:"control,omitempty"`
	Split   float64            `json:"split" validate:"gte=0,lte=1"`
	Params  map[string]float64 `json:"params,omitempty"`
}

// Audience restricts which users an experiment may see.
//
// Percentage is the fraction of eligible users exposed to the test, in
// (0, 1]. Zero means unspecified and defaults to 1 at creation.
// Criteria entries must all match the caller-supplied user context for
// the user to be eligible.
type Audience struct {
	Percentage float64           `json:"percentage" validate:"gte=0,lte=1"`
	Criteria   map[string]string `json:"criteria,omitempty"`
}

// Config describes one experiment.
//
// # Validation
//
// At creation: at least two variants, at most one marked control, splits
// summing to 1 within 0.01 (equal split is filled in when all splits are
// zero), audience percentage in (0, 1], and at least one metric name.
type Config struct {
	ID                string    `json:"id"`
	Name              string    `json:"name" validate:"required"`
	Description       string    `json:"description,omitempty"`
	Variants          []Variant `json:"variants" validate:"required,min=2,dive"`
	Audience          Audience  `json:"audience"`
	Metrics           []string  `json:"metrics" validate:"required,min=1"`
	SignificanceLevel float64   `json:"significance_level" validate:"gte=0,lte=1"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	EndedAt           time.Time `json:"ended_at,omitempty"`
	StopReason        string    `json:"stop_reason,omitempty"`
}

// ControlVariant returns the designated control, falling back to the
// first variant when none is marked.
func (c *Config) ControlVariant() Variant {
	for _, v := range c.Variants {
		if v.Control {
			return v
		}
	}
	return c.Variants[0]
}

// =============================================================================
// Results and Assignments
// =============================================================================

// Result is one recorded exposure outcome. Results are append-only and
// never mutated.
type Result struct {
	TestID    string             `json:"test_id"`
	VariantID string             `json:"variant_id"`
	UserID    string             `json:"user_id"`
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
	Context   map[string]string  `json:"context,omitempty"`
}

// Assignment pins a user to a variant for the test's lifetime.
type Assignment struct {
	TestID     string    `json:"test_id"`
	UserID     string    `json:"user_id"`
	VariantID  string    `json:"variant_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// =============================================================================
// Analysis
// =============================================================================

// MetricAnalysis is the per-metric statistical summary for one variant.
type MetricAnalysis struct {
	Samples        int     `json:"samples"`
	Mean           float64 `json:"mean"`
	CILow          float64 `json:"ci_low"`
	CIHigh         float64 `json:"ci_high"`
	TStatistic     float64 `json:"t_statistic"`
	PValue         float64 `json:"p_value"`
	Significant    bool    `json:"significant"`
	ImprovementPct float64 `json:"improvement_pct"`
}

// VariantAnalysis summarizes one variant. A zero-sample variant carries
// no metric entries.
type VariantAnalysis struct {
	VariantID string                    `json:"variant_id"`
	Control   bool                      `json:"control"`
	Samples   int                       `json:"samples"`
	Metrics   map[string]MetricAnalysis `json:"metrics,omitempty"`
}

// TestAnalysis is the full analysis of one experiment.
type TestAnalysis struct {
	TestID       string            `json:"test_id"`
	Status       Status            `json:"status"`
	Verdict      Verdict           `json:"verdict"`
	TotalSamples int               `json:"total_samples"`
	Variants     []VariantAnalysis `json:"variants"`
	AnalyzedAt   time.Time         `json:"analyzed_at"`
}
