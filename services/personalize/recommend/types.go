// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recommend

import (
	"time"

	"github.com/AleutianAI/AleutianStudio/services/personalize/features"
)

// Tool describes one creative tool in the catalog.
type Tool struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`

	// RequiresImage tools need a supplied input image.
	RequiresImage bool `json:"requires_image" yaml:"requires_image"`

	// SupportsMultiImage tools compose several input images and are
	// excluded on mobile devices.
	SupportsMultiImage bool `json:"supports_multi_image" yaml:"supports_multi_image"`

	// NetworkHeavy tools stream large payloads and are excluded on
	// slow networks.
	NetworkHeavy bool `json:"network_heavy" yaml:"network_heavy"`

	// Difficulty in [0, 1]; matched against the user's skill level.
	Difficulty float64 `json:"difficulty" yaml:"difficulty"`

	// BaselineQuality is the tool's expected quality in [0, 100] with
	// no usage history.
	BaselineQuality float64 `json:"baseline_quality" yaml:"baseline_quality"`

	// BaseTimeMs is the baseline generation time before device and
	// network multipliers.
	BaseTimeMs int64 `json:"base_time_ms" yaml:"base_time_ms"`

	// Keywords describe the prompts this tool handles well.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// DefaultParams seed the suggested parameters for users with no
	// history on this tool.
	DefaultParams map[string]float64 `json:"default_params" yaml:"default_params"`
}

// Context is the request context for one recommendation call.
type Context struct {
	UserID       string `json:"user_id"`
	Prompt       string `json:"prompt"`
	Device       string `json:"device"`
	NetworkSpeed string `json:"network_speed"`
	HasImages    bool   `json:"has_images"`
	ImageCount   int    `json:"image_count"`
}

// UsageRecord is one recorded tool usage outcome.
type UsageRecord struct {
	ToolID       string             `json:"tool_id"`
	UserID       string             `json:"user_id"`
	Device       string             `json:"device"`
	NetworkSpeed string             `json:"network_speed"`
	Success      bool               `json:"success"`
	QualityScore float64            `json:"quality_score"`
	LatencyMs    int64              `json:"latency_ms"`
	Params       map[string]float64 `json:"params,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// ScoreBreakdown is the weighted-sum decomposition for one candidate.
// The components already include their weights; Total is their sum.
type ScoreBreakdown struct {
	Behavior    float64 `json:"behavior"`
	PromptMatch float64 `json:"prompt_match"`
	Historical  float64 `json:"historical"`
	SkillMatch  float64 `json:"skill_match"`
	ContextFit  float64 `json:"context_fit"`
	Total       float64 `json:"total"`
}

// Recommendation is one ranked tool suggestion.
type Recommendation struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`

	// Score is the combined weighted score in [0, 1].
	Score float64 `json:"score"`

	// Confidence in [0, 100].
	Confidence float64 `json:"confidence"`

	RequiresImage bool `json:"requires_image"`

	// SuggestedParams come from the user's historical mean, adjusted
	// for device and network.
	SuggestedParams map[string]float64 `json:"suggested_params,omitempty"`

	// EstimatedQuality in [0, 100]: similar-context historical
	// average, else the tool baseline.
	EstimatedQuality float64 `json:"estimated_quality"`

	// EstimatedTimeMs is baseline x device/network/image multipliers.
	EstimatedTimeMs int64 `json:"estimated_time_ms"`

	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Result is the full ranked recommendation response.
type Result struct {
	// Primary is the top 3 recommendations; never empty.
	Primary []Recommendation `json:"primary"`

	// Alternatives are the next 3.
	Alternatives []Recommendation `json:"alternatives,omitempty"`

	// Confidence in [0, 100] reflects how much user history backed
	// this ranking.
	Confidence float64 `json:"confidence"`

	PromptAnalysis features.PromptAnalysis `json:"prompt_analysis"`
}
