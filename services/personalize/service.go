// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package personalize composes the personalization engine: feature
// extraction, tool recommendation, experimentation, quality assessment,
// and model monitoring behind one service object and its HTTP surface.
package personalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianStudio/services/personalize/experiment"
	"github.com/AleutianAI/AleutianStudio/services/personalize/features"
	"github.com/AleutianAI/AleutianStudio/services/personalize/monitor"
	"github.com/AleutianAI/AleutianStudio/services/personalize/quality"
	"github.com/AleutianAI/AleutianStudio/services/personalize/recommend"
	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
	"github.com/AleutianAI/AleutianStudio/services/personalize/telemetry"
)

// ServiceVersion is the personalization service version.
const ServiceVersion = "0.1.0"

var tracer = otel.Tracer("aleutian.personalize")

// Sentinel errors for synchronous request validation.
var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrEmptyUserID = errors.New("user id is empty")
)

// Service composes the personalization components.
//
// # Thread Safety
//
// Safe for concurrent use; every component manages its own locking.
type Service struct {
	store       storage.Store
	features    *features.Store
	engine      *recommend.Engine
	experiments *experiment.Framework
	assessor    *quality.Assessor
	monitor     *monitor.Monitor
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the telemetry metrics. Nil metrics disable
// instrument recording.
func WithMetrics(m *telemetry.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithAssessor overrides the quality assessor.
func WithAssessor(a *quality.Assessor) ServiceOption {
	return func(s *Service) { s.assessor = a }
}

// WithMonitor overrides the monitor.
func WithMonitor(m *monitor.Monitor) ServiceOption {
	return func(s *Service) { s.monitor = m }
}

// NewService wires the personalization components over one storage
// backend.
//
// # Inputs
//
//   - st: Storage backend shared by all components.
//   - catalog: The tool catalog; must be non-empty.
func NewService(st storage.Store, catalog []recommend.Tool, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.features = features.NewStore(st, features.WithLogger(s.logger))

	engine, err := recommend.NewEngine(s.features, st, catalog,
		recommend.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}
	s.engine = engine

	s.experiments = experiment.NewFramework(st, experiment.WithLogger(s.logger))
	if s.assessor == nil {
		s.assessor = quality.NewAssessor(quality.WithLogger(s.logger))
	}
	if s.monitor == nil {
		s.monitor = monitor.NewMonitor(
			monitor.WithLogger(s.logger),
			monitor.WithMetrics(s.metrics))
	}
	return s, nil
}

// Features returns the feature store.
func (s *Service) Features() *features.Store { return s.features }

// Experiments returns the experiment framework.
func (s *Service) Experiments() *experiment.Framework { return s.experiments }

// Monitor returns the monitoring service.
func (s *Service) Monitor() *monitor.Monitor { return s.monitor }

// Recommend validates the request context and ranks tools.
func (s *Service) Recommend(ctx context.Context, rc recommend.Context) (*recommend.Result, error) {
	if rc.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if rc.Prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, span := tracer.Start(ctx, "personalize.Recommend",
		trace.WithAttributes(
			attribute.String("personalize.user_id", rc.UserID),
			attribute.String("personalize.device", rc.Device),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := s.engine.GetRecommendations(ctx, rc)
	if s.metrics != nil {
		s.metrics.RecommendationsTotal.Add(ctx, 1)
		s.metrics.RecommendationDuration.Record(ctx, time.Since(start).Seconds())
	}
	return result, err
}

// IngestEvent records one interaction event.
//
// # Description
//
// Fire-and-forget ingestion: the event feeds both the user's behavior
// history and the tool's usage history, and a generation id on the
// event additionally creates the generation feature record. Unknown
// tools are logged and ignored inside the engine.
func (s *Service) IngestEvent(ctx context.Context, event features.InteractionEvent) error {
	if event.UserID == "" {
		return ErrEmptyUserID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := s.features.RecordBehavior(ctx, event); err != nil {
		return fmt.Errorf("record behavior: %w", err)
	}
	if event.ToolID != "" {
		usage := recommend.UsageRecord{
			UserID:       event.UserID,
			Device:       event.Device,
			NetworkSpeed: event.NetworkSpeed,
			Success:      event.Success,
			QualityScore: event.QualityScore,
			LatencyMs:    event.LatencyMs,
			Timestamp:    event.Timestamp,
		}
		if err := s.engine.RecordToolUsage(ctx, event.ToolID, usage); err != nil {
			return fmt.Errorf("record tool usage: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.EventsIngestedTotal.Add(ctx, 1)
	}
	return nil
}

// StartGeneration creates the feature record for a new generation
// attempt.
func (s *Service) StartGeneration(ctx context.Context, req features.GenerationRequest) (*features.GenerationFeatures, error) {
	if req.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	return s.features.ExtractGenerationFeatures(ctx, req)
}

// RecordGenerationResult attaches the outcome to a generation and, when
// artifact bytes are supplied, assesses their quality first so the
// stored outcome carries the assessed score.
func (s *Service) RecordGenerationResult(ctx context.Context, generationID string, outcome features.GenerationOutcome, artifact []byte) (*quality.Metrics, error) {
	var assessed *quality.Metrics
	if len(artifact) > 0 {
		gf, err := s.features.GetGenerationFeatures(ctx, generationID)
		req := quality.Request{GenerationID: generationID, ImageData: artifact}
		if err == nil {
			req.ToolID = gf.ToolID
			req.Prompt = gf.Prompt
		}
		m := s.assessor.Assess(ctx, req)
		assessed = &m
		outcome.QualityScore = m.OverallScore
		if s.metrics != nil {
			s.metrics.QualityAssessmentsTotal.Add(ctx, 1)
			s.metrics.QualityScore.Record(ctx, m.OverallScore)
		}
	}

	if err := s.features.UpdateGenerationResult(ctx, generationID, outcome); err != nil {
		return assessed, fmt.Errorf("update generation result: %w", err)
	}
	return assessed, nil
}

// RecordRating attaches an asynchronous 1-5 user rating to a
// generation.
func (s *Service) RecordRating(ctx context.Context, generationID string, rating float64) error {
	return s.features.RecordSatisfaction(ctx, generationID, rating)
}

// AssessQuality runs a standalone quality assessment.
func (s *Service) AssessQuality(ctx context.Context, req quality.Request) quality.Metrics {
	ctx, span := tracer.Start(ctx, "personalize.AssessQuality",
		trace.WithAttributes(attribute.String("personalize.tool_id", req.ToolID)),
	)
	defer span.End()

	m := s.assessor.Assess(ctx, req)
	if s.metrics != nil {
		s.metrics.QualityAssessmentsTotal.Add(ctx, 1)
		s.metrics.QualityScore.Record(ctx, m.OverallScore)
	}
	return m
}

// QualityReport returns the rolling per-tool assessment summary.
func (s *Service) QualityReport(toolID string) quality.ToolReport {
	return s.assessor.Report(toolID)
}

// UserVariant resolves the user's experiment variant.
func (s *Service) UserVariant(ctx context.Context, userID, testID string, userCtx map[string]string) (string, error) {
	variant, err := s.experiments.GetUserVariant(ctx, userID, testID, userCtx)
	if err == nil && s.metrics != nil {
		s.metrics.ExperimentAssignmentsTotal.Add(ctx, 1)
	}
	return variant, err
}

// RecordTestResult records one experiment exposure outcome.
func (s *Service) RecordTestResult(ctx context.Context, result experiment.Result) error {
	err := s.experiments.RecordTestResult(ctx, result)
	if err == nil && s.metrics != nil {
		s.metrics.ExperimentResultsTotal.Add(ctx, 1)
	}
	return err
}
