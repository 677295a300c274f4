// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package personalize

import (
	"github.com/AleutianAI/AleutianStudio/services/personalize/monitor"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// RecommendationRequest is the body for POST /v1/personalize/recommendations.
type RecommendationRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	Prompt       string `json:"prompt" binding:"required"`
	Device       string `json:"device"`
	NetworkSpeed string `json:"network_speed"`
	HasImages    bool   `json:"has_images"`
	ImageCount   int    `json:"image_count"`
}

// EventRequest is the body for POST /v1/personalize/events.
//
// A non-empty GenerationID additionally creates the generation feature
// record for the attempt.
type EventRequest struct {
	UserID       string  `json:"user_id" binding:"required"`
	ToolID       string  `json:"tool_id"`
	Prompt       string  `json:"prompt"`
	Device       string  `json:"device"`
	NetworkSpeed string  `json:"network_speed"`
	Success      bool    `json:"success"`
	QualityScore float64 `json:"quality_score"`
	LatencyMs    int64   `json:"latency_ms"`
	Hour         int     `json:"hour"`
	HasImages    bool    `json:"has_images"`
	ImageCount   int     `json:"image_count"`
	GenerationID string  `json:"generation_id"`
}

// GenerationResultRequest is the body for
// POST /v1/personalize/generations/:id/result. ImageData is the
// base64-encoded artifact; when present the quality assessor scores it
// and the assessed score replaces QualityScore.
type GenerationResultRequest struct {
	Success      bool    `json:"success"`
	QualityScore float64 `json:"quality_score"`
	LatencyMs    int64   `json:"latency_ms"`
	ImageData    string  `json:"image_data,omitempty"`
}

// RatingRequest is the body for POST /v1/personalize/ratings.
type RatingRequest struct {
	GenerationID string  `json:"generation_id" binding:"required"`
	Rating       float64 `json:"rating" binding:"required"`
}

// QualityAssessRequest is the body for POST /v1/personalize/quality/assess.
type QualityAssessRequest struct {
	GenerationID string `json:"generation_id"`
	ToolID       string `json:"tool_id"`
	Prompt       string `json:"prompt"`

	// ImageData is the base64-encoded artifact bytes.
	ImageData string `json:"image_data"`
}

// VariantResponse is the body for GET /v1/personalize/experiments/:id/variant.
type VariantResponse struct {
	TestID    string `json:"test_id"`
	UserID    string `json:"user_id"`
	VariantID string `json:"variant_id"`
}

// ModelPerformanceRequest is the body for POST /v1/personalize/monitor/performance.
type ModelPerformanceRequest struct {
	ModelID   string  `json:"model_id" binding:"required"`
	Accuracy  float64 `json:"accuracy"`
	LatencyMs float64 `json:"latency_ms"`
	ErrorRate float64 `json:"error_rate"`
	MemoryMB  float64 `json:"memory_mb"`
	CPUUtil   float64 `json:"cpu_util"`
}

// DriftRequest is the body for POST /v1/personalize/monitor/drift.
type DriftRequest struct {
	Feature   string    `json:"feature" binding:"required"`
	Current   []float64 `json:"current" binding:"required"`
	Reference []float64 `json:"reference" binding:"required"`
}

// HealthResponse is the body for GET /v1/personalize/health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Models  []monitor.HealthStatus `json:"models,omitempty"`
	Alerts  []monitor.Alert        `json:"alerts,omitempty"`
}

// AcceptedResponse is the body for fire-and-forget ingestion endpoints.
type AcceptedResponse struct {
	Status string `json:"status"`
}
