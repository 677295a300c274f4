// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package features

import "time"

// InteractionEvent is one raw usage event from the surrounding application.
//
// Events arrive at least once per generation attempt; aggregation is
// tolerant of duplicates in the sense that derived scores stay in range.
type InteractionEvent struct {
	// UserID identifies the acting user.
	UserID string `json:"user_id"`

	// ToolID identifies the creative tool used.
	ToolID string `json:"tool_id"`

	// Prompt is the raw prompt text, possibly empty for non-prompt tools.
	Prompt string `json:"prompt,omitempty"`

	// Device is the client device class: "desktop", "mobile", or "tablet".
	Device string `json:"device"`

	// NetworkSpeed is the client network class: "fast" or "slow".
	NetworkSpeed string `json:"network_speed"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Success reports whether the generation attempt succeeded.
	Success bool `json:"success"`

	// QualityScore is the assessed quality in [0, 100]. 0 when unknown.
	QualityScore float64 `json:"quality_score,omitempty"`

	// LatencyMs is the end-to-end generation latency in milliseconds.
	LatencyMs int64 `json:"latency_ms,omitempty"`
}

// UserFeatures is the per-user aggregate record.
//
// # Description
//
// Raw counters (TotalGenerations, SuccessCount, HourCounts, ToolCounts)
// are folded incrementally; derived fields (SuccessRate, PreferredHours,
// MostUsedTools, the three scores) are deterministic functions of the
// counters, recomputed on every update. Records are created on the first
// event for a user and never deleted; RecentOutcomes caps the history
// kept for the learning-curve estimate.
type UserFeatures struct {
	UserID string `json:"user_id"`

	// TotalGenerations counts all observed generation attempts.
	TotalGenerations int `json:"total_generations"`

	// SuccessCount counts successful attempts.
	SuccessCount int `json:"success_count"`

	// SuccessRate = SuccessCount / TotalGenerations, in [0, 1].
	SuccessRate float64 `json:"success_rate"`

	// HourCounts tallies attempts per hour of day (0-23).
	HourCounts [24]int `json:"hour_counts"`

	// PreferredHours is the top 3 most frequent hours, descending.
	PreferredHours []int `json:"preferred_hours"`

	// ToolCounts tallies attempts per tool.
	ToolCounts map[string]int `json:"tool_counts"`

	// MostUsedTools is the top 5 tools by frequency, descending.
	MostUsedTools []string `json:"most_used_tools"`

	// ExplorationScore = min(distinctTools/10, 1), in [0, 1].
	ExplorationScore float64 `json:"exploration_score"`

	// ConsistencyScore is the Herfindahl concentration of tool usage,
	// in [0, 1]. Higher means the user sticks to fewer tools.
	ConsistencyScore float64 `json:"consistency_score"`

	// LearningCurve compares the recent success rate against the
	// lifetime rate, mapped into [0, 1] with 0.5 meaning flat.
	LearningCurve float64 `json:"learning_curve"`

	// RecentOutcomes is the last N attempt outcomes, oldest first,
	// capped at recentOutcomeWindow.
	RecentOutcomes []bool `json:"recent_outcomes"`

	// LastUpdated is the time of the last folded event.
	LastUpdated time.Time `json:"last_updated"`
}

// GenerationRequest describes one generation attempt at request time.
type GenerationRequest struct {
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	ToolID       string `json:"tool_id"`
	Prompt       string `json:"prompt"`
	Device       string `json:"device"`
	NetworkSpeed string `json:"network_speed"`

	// Hour is the local hour of day (0-23) at request time.
	Hour int `json:"hour"`

	HasImages  bool `json:"has_images"`
	ImageCount int  `json:"image_count"`
}

// GenerationOutcome is the result of a generation attempt. Fields stay
// unset until the result is known; the record is mutated exactly once.
type GenerationOutcome struct {
	Success bool `json:"success"`

	// QualityScore is the assessed quality in [0, 100].
	QualityScore float64 `json:"quality_score"`

	// Satisfaction is the optional 1-5 user rating. 0 when not supplied.
	Satisfaction float64 `json:"satisfaction,omitempty"`

	LatencyMs int64 `json:"latency_ms"`
}

// GenerationFeatures is the per-generation feature record.
type GenerationFeatures struct {
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	ToolID       string `json:"tool_id"`

	Prompt       string `json:"prompt"`
	PromptLength int    `json:"prompt_length"`

	// PromptComplexity is the weighted complexity score in [0, 1].
	// See promptComplexityV1 for the exact weights.
	PromptComplexity float64 `json:"prompt_complexity"`

	// Keywords are stop-word-filtered prompt keywords, capped.
	Keywords []string `json:"keywords"`

	// Embedding is a fixed-length pseudo-embedding built from keyword
	// hashes (length EmbeddingDim).
	Embedding []float64 `json:"embedding"`

	// Sentiment in [-1, 1], Creativity and Specificity in [0, 1],
	// all lexicon-based.
	Sentiment   float64 `json:"sentiment"`
	Creativity  float64 `json:"creativity"`
	Specificity float64 `json:"specificity"`

	Device       string `json:"device"`
	NetworkSpeed string `json:"network_speed"`
	Hour         int    `json:"hour"`
	HasImages    bool   `json:"has_images"`
	ImageCount   int    `json:"image_count"`

	// Outcome is nil until the generation result is recorded.
	Outcome *GenerationOutcome `json:"outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FeatureVector is a fixed-order numeric encoding of a (user, generation)
// pair. Values and Names are parallel arrays; the field order never
// changes between calls.
type FeatureVector struct {
	UserID  string    `json:"user_id"`
	Values  []float64 `json:"values"`
	Names   []string  `json:"names"`
	Context string    `json:"context,omitempty"`
}
