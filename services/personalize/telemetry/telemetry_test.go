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
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestInit_DisabledExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // exercising the nil-context guard
	if _, err := Init(nil, DefaultConfig()); !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "graphite"
	cfg.MetricExporter = "none"

	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}
}

func TestNewMetrics_AllRegistered(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter("personalize-test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.RecommendationsTotal == nil || m.RecommendationDuration == nil ||
		m.EventsIngestedTotal == nil || m.ExperimentAssignmentsTotal == nil ||
		m.ExperimentResultsTotal == nil || m.QualityAssessmentsTotal == nil ||
		m.QualityScore == nil || m.AlertsFiredTotal == nil || m.ErrorsTotal == nil {
		t.Error("every metric instrument must be initialized")
	}

	m.RecommendationsTotal.Add(context.Background(), 1)
	m.QualityScore.Record(context.Background(), 72.5)
}
