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
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianStudio/services/personalize/experiment"
	"github.com/AleutianAI/AleutianStudio/services/personalize/features"
	"github.com/AleutianAI/AleutianStudio/services/personalize/monitor"
	"github.com/AleutianAI/AleutianStudio/services/personalize/quality"
	"github.com/AleutianAI/AleutianStudio/services/personalize/recommend"
)

// Handlers contains the HTTP handlers for the personalization service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// countError bumps the error counter for one component. Client-side
// validation rejections are not counted; the counter covers failed and
// degraded server paths only.
func (h *Handlers) countError(ctx context.Context, component string) {
	if h.svc.metrics == nil {
		return
	}
	h.svc.metrics.ErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)))
}

// HandleRecommendations handles POST /v1/personalize/recommendations.
//
// Description:
//
//	Ranks catalog tools for the user's current context. Synchronous and
//	free of network calls; absent history yields neutral-default scores
//	with lowered confidence rather than an error.
//
// Response:
//
//	200 OK: recommend.Result
//	400 Bad Request: Validation error
func (h *Handlers) HandleRecommendations(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRecommendations")

	var req RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.svc.Recommend(c.Request.Context(), recommend.Context{
		UserID:       req.UserID,
		Prompt:       req.Prompt,
		Device:       req.Device,
		NetworkSpeed: req.NetworkSpeed,
		HasImages:    req.HasImages,
		ImageCount:   req.ImageCount,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrEmptyUserID) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_REQUEST",
			})
			return
		}
		logger.Error("Recommendation failed", "error", err)
		h.countError(c.Request.Context(), "recommendations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Recommendation failed",
			Code:  "RECOMMEND_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleEvent handles POST /v1/personalize/events.
//
// Description:
//
//	Fire-and-forget ingestion of one interaction event. Storage errors
//	are logged and still acknowledged with 202 so callers never couple
//	their hot path to ingestion health; only a malformed body is
//	rejected.
//
// Response:
//
//	202 Accepted: AcceptedResponse
//	400 Bad Request: Validation error
func (h *Handlers) HandleEvent(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEvent")

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()
	event := features.InteractionEvent{
		UserID:       req.UserID,
		ToolID:       req.ToolID,
		Prompt:       req.Prompt,
		Device:       req.Device,
		NetworkSpeed: req.NetworkSpeed,
		Timestamp:    time.Now(),
		Success:      req.Success,
		QualityScore: req.QualityScore,
		LatencyMs:    req.LatencyMs,
	}
	if err := h.svc.IngestEvent(ctx, event); err != nil {
		logger.Warn("Event ingestion degraded", "error", err)
		h.countError(ctx, "events")
	}

	if req.GenerationID != "" {
		_, err := h.svc.StartGeneration(ctx, features.GenerationRequest{
			GenerationID: req.GenerationID,
			UserID:       req.UserID,
			ToolID:       req.ToolID,
			Prompt:       req.Prompt,
			Device:       req.Device,
			NetworkSpeed: req.NetworkSpeed,
			Hour:         req.Hour,
			HasImages:    req.HasImages,
			ImageCount:   req.ImageCount,
		})
		if err != nil {
			logger.Warn("Generation feature extraction degraded", "error", err)
			h.countError(ctx, "events")
		}
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// HandleGenerationResult handles POST /v1/personalize/generations/:id/result.
//
// Description:
//
//	Attaches the outcome to a generation. Base64 artifact bytes, when
//	present, are assessed first and the assessed score replaces the
//	caller-supplied one. Unknown generation ids are logged and ignored;
//	the endpoint still acknowledges with 202.
//
// Response:
//
//	202 Accepted: quality.Metrics when an artifact was assessed,
//	AcceptedResponse otherwise
//	400 Bad Request: Validation error
func (h *Handlers) HandleGenerationResult(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGenerationResult")

	generationID := c.Param("id")
	var req GenerationResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	artifact, err := decodeArtifact(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid base64 image data",
			Code:  "INVALID_IMAGE_DATA",
		})
		return
	}

	outcome := features.GenerationOutcome{
		Success:      req.Success,
		QualityScore: req.QualityScore,
		LatencyMs:    req.LatencyMs,
	}
	assessed, err := h.svc.RecordGenerationResult(c.Request.Context(), generationID, outcome, artifact)
	if err != nil {
		logger.Warn("Generation result ingestion degraded", "error", err)
		h.countError(c.Request.Context(), "generation_results")
	}
	if assessed != nil {
		c.JSON(http.StatusAccepted, assessed)
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// HandleRating handles POST /v1/personalize/ratings.
//
// Response:
//
//	202 Accepted: AcceptedResponse
//	400 Bad Request: Validation error
func (h *Handlers) HandleRating(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRating")

	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Rating must be between 1 and 5",
			Code:  "INVALID_RATING",
		})
		return
	}

	if err := h.svc.RecordRating(c.Request.Context(), req.GenerationID, req.Rating); err != nil {
		logger.Warn("Rating ingestion degraded", "error", err)
		h.countError(c.Request.Context(), "ratings")
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// HandleCreateExperiment handles POST /v1/personalize/experiments.
//
// Response:
//
//	201 Created: experiment.Config
//	400 Bad Request: Validation error
func (h *Handlers) HandleCreateExperiment(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateExperiment")

	var cfg experiment.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	created, err := h.svc.Experiments().CreateTest(c.Request.Context(), cfg)
	if err != nil {
		code := "INVALID_CONFIG"
		if errors.Is(err, experiment.ErrMalformedSplit) {
			code = "MALFORMED_SPLIT"
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// HandleStartExperiment handles POST /v1/personalize/experiments/:id/start.
func (h *Handlers) HandleStartExperiment(c *gin.Context) {
	h.transitionExperiment(c, "start")
}

// HandleStopExperiment handles POST /v1/personalize/experiments/:id/stop.
func (h *Handlers) HandleStopExperiment(c *gin.Context) {
	h.transitionExperiment(c, "stop")
}

// transitionExperiment runs a lifecycle transition shared by the start
// and stop endpoints.
func (h *Handlers) transitionExperiment(c *gin.Context, op string) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "transitionExperiment", "op", op)

	testID := c.Param("id")
	var (
		cfg *experiment.Config
		err error
	)
	switch op {
	case "start":
		cfg, err = h.svc.Experiments().StartTest(c.Request.Context(), testID)
	case "stop":
		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&body)
		if body.Reason == "" {
			body.Reason = "manual"
		}
		cfg, err = h.svc.Experiments().StopTest(c.Request.Context(), testID, body.Reason)
	}
	if err != nil {
		if errors.Is(err, experiment.ErrTestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "TEST_NOT_FOUND",
			})
			return
		}
		logger.Warn("Experiment transition rejected", "error", err)
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TRANSITION",
		})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// HandleUserVariant handles GET /v1/personalize/experiments/:id/variant.
//
// Description:
//
//	Resolves the caller's variant for an experiment. The user id comes
//	from the user_id query parameter; remaining query parameters feed
//	the audience-criteria match.
//
// Response:
//
//	200 OK: VariantResponse
//	403 Forbidden: User is not eligible (permanently excluded)
//	404 Not Found: Unknown test
//	409 Conflict: Test is not active
func (h *Handlers) HandleUserVariant(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUserVariant")

	testID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "user_id query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	userCtx := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if key == "user_id" || len(values) == 0 {
			continue
		}
		userCtx[key] = values[0]
	}

	variant, err := h.svc.UserVariant(c.Request.Context(), userID, testID, userCtx)
	if err != nil {
		switch {
		case errors.Is(err, experiment.ErrTestNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "TEST_NOT_FOUND",
			})
		case errors.Is(err, experiment.ErrNotEligible):
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error: err.Error(),
				Code:  "NOT_ELIGIBLE",
			})
		case errors.Is(err, experiment.ErrTestNotActive):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: err.Error(),
				Code:  "TEST_NOT_ACTIVE",
			})
		default:
			logger.Error("Variant resolution failed", "error", err)
			h.countError(c.Request.Context(), "experiments")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "Variant resolution failed",
				Code:  "VARIANT_FAILED",
			})
		}
		return
	}
	c.JSON(http.StatusOK, VariantResponse{
		TestID:    testID,
		UserID:    userID,
		VariantID: variant,
	})
}

// HandleTestResult handles POST /v1/personalize/experiments/:id/results.
//
// Description:
//
//	Fire-and-forget recording of one exposure outcome. Unknown or
//	inactive tests are acknowledged with 202 and logged; results are
//	append-only and may auto-stop the test.
func (h *Handlers) HandleTestResult(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTestResult")

	var result experiment.Result
	if err := c.ShouldBindJSON(&result); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	result.TestID = c.Param("id")

	if err := h.svc.RecordTestResult(c.Request.Context(), result); err != nil {
		logger.Warn("Test result ingestion degraded", "error", err)
		h.countError(c.Request.Context(), "experiments")
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// HandleAnalysis handles GET /v1/personalize/experiments/:id/analysis.
//
// Response:
//
//	200 OK: experiment.TestAnalysis
//	404 Not Found: Unknown test
func (h *Handlers) HandleAnalysis(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalysis")

	analysis, err := h.svc.Experiments().AnalyzeTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, experiment.ErrTestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "TEST_NOT_FOUND",
			})
			return
		}
		logger.Error("Analysis failed", "error", err)
		h.countError(c.Request.Context(), "experiments")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Analysis failed",
			Code:  "ANALYSIS_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// HandleQualityAssess handles POST /v1/personalize/quality/assess.
//
// Description:
//
//	Standalone quality assessment. Undecodable image data still yields
//	the neutral-default metric set with Degraded set, never an error.
//
// Response:
//
//	200 OK: quality.Metrics
//	400 Bad Request: Validation error (malformed base64 only)
func (h *Handlers) HandleQualityAssess(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQualityAssess")

	var req QualityAssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	artifact, err := decodeArtifact(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid base64 image data",
			Code:  "INVALID_IMAGE_DATA",
		})
		return
	}

	metrics := h.svc.AssessQuality(c.Request.Context(), quality.Request{
		GenerationID: req.GenerationID,
		ToolID:       req.ToolID,
		Prompt:       req.Prompt,
		ImageData:    artifact,
	})
	c.JSON(http.StatusOK, metrics)
}

// HandleQualityReport handles GET /v1/personalize/quality/report/:tool.
func (h *Handlers) HandleQualityReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.QualityReport(c.Param("tool")))
}

// HandleModelPerformance handles POST /v1/personalize/monitor/performance.
//
// Response:
//
//	200 OK: monitor.HealthStatus
//	400 Bad Request: Validation error
func (h *Handlers) HandleModelPerformance(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleModelPerformance")

	var req ModelPerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	status := h.svc.Monitor().RecordModelPerformance(monitor.PerformanceMetrics{
		ModelID:   req.ModelID,
		Accuracy:  req.Accuracy,
		LatencyMs: req.LatencyMs,
		ErrorRate: req.ErrorRate,
		MemoryMB:  req.MemoryMB,
		CPUUtil:   req.CPUUtil,
	})
	c.JSON(http.StatusOK, status)
}

// HandleDrift handles POST /v1/personalize/monitor/drift.
//
// Response:
//
//	200 OK: monitor.DriftReport
//	400 Bad Request: Validation error
func (h *Handlers) HandleDrift(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDrift")

	var req DriftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	report := h.svc.Monitor().DetectDataDrift(req.Feature, req.Current, req.Reference)
	c.JSON(http.StatusOK, report)
}

// HandleHealth handles GET /v1/personalize/health.
//
// Description:
//
//	Service liveness plus the monitor's current view: per-model health
//	and unresolved alerts. The service itself reports "ok" as long as
//	it can answer; model state degrades the payload, not the status
//	code.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: ServiceVersion,
		Models:  h.svc.Monitor().AllModelHealth(),
		Alerts:  h.svc.Monitor().ActiveAlerts(),
	})
}

// decodeArtifact decodes optional base64 artifact bytes.
func decodeArtifact(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// getOrCreateRequestID returns the X-Request-ID header, minting one if
// absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
