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
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AleutianAI/AleutianStudio/services/personalize/telemetry"
)

// manualClock advances under test control. Times derive from one base
// reading so monotonic comparison keeps working.
type manualClock struct {
	base    time.Time
	elapsed time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{base: time.Now()}
}

func (c *manualClock) Now() time.Time          { return c.base.Add(c.elapsed) }
func (c *manualClock) Advance(d time.Duration) { c.elapsed += d }

func healthyMetrics(modelID string) PerformanceMetrics {
	return PerformanceMetrics{
		ModelID: modelID, Accuracy: 0.92, LatencyMs: 120,
		ErrorRate: 0.01, MemoryMB: 512, CPUUtil: 0.35,
	}
}

func TestRecordModelPerformance_Healthy(t *testing.T) {
	m := NewMonitor()

	status := m.RecordModelPerformance(healthyMetrics("ranker-v2"))
	if status.State != StateHealthy {
		t.Errorf("state = %s, want healthy", status.State)
	}
	if len(status.Issues) != 0 {
		t.Errorf("unexpected issues: %v", status.Issues)
	}
	if len(m.ActiveAlerts()) != 0 {
		t.Error("healthy model must not raise alerts")
	}
}

func TestRecordModelPerformance_WarningTier(t *testing.T) {
	m := NewMonitor()

	metrics := healthyMetrics("ranker-v2")
	metrics.Accuracy = 0.6

	status := m.RecordModelPerformance(metrics)
	if status.State != StateWarning {
		t.Errorf("state = %s, want warning", status.State)
	}
	if len(status.Issues) != 1 || status.Issues[0] != "accuracy" {
		t.Errorf("issues = %v, want [accuracy]", status.Issues)
	}
	if status.Remediation == "" {
		t.Error("warning status must carry remediation text")
	}
}

func TestFireAlert_CountsOnServiceMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	tm, err := telemetry.NewMetrics(mp.Meter("monitor-test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m := NewMonitor(WithMetrics(tm))
	perf := healthyMetrics("ranker-v2")
	perf.Accuracy = 0.4
	m.RecordModelPerformance(perf)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var fired int64
	for _, sm := range rm.ScopeMetrics {
		for _, instrument := range sm.Metrics {
			if instrument.Name != "personalize_alerts_fired_total" {
				continue
			}
			sum, ok := instrument.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected aggregation %T", instrument.Data)
			}
			for _, dp := range sum.DataPoints {
				fired += dp.Value
			}
		}
	}
	if fired == 0 {
		t.Error("fired alert must increment the alert counter")
	}
}

// Scenario: accuracy 0.4 reported five times inside ten minutes.
func TestRecordModelPerformance_CriticalWithOneThrottledAlert(t *testing.T) {
	clock := newManualClock()
	m := NewMonitor(WithClock(clock.Now))

	metrics := healthyMetrics("ranker-v2")
	metrics.Accuracy = 0.4

	for i := 0; i < 5; i++ {
		status := m.RecordModelPerformance(metrics)
		if status.State != StateCritical {
			t.Fatalf("record %d: state = %s, want critical", i, status.State)
		}
		clock.Advance(2 * time.Minute)
	}

	alerts := m.ActiveAlerts()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want exactly 1", len(alerts))
	}
	if alerts[0].Metric != "accuracy" || alerts[0].Severity != SeverityCritical {
		t.Errorf("alert = %+v, want critical accuracy alert", alerts[0])
	}
}

func TestAlertThrottle_ExpiresAfterWindow(t *testing.T) {
	clock := newManualClock()
	m := NewMonitor(WithClock(clock.Now))

	metrics := healthyMetrics("ranker-v2")
	metrics.Accuracy = 0.4

	m.RecordModelPerformance(metrics)
	clock.Advance(31 * time.Minute)
	m.RecordModelPerformance(metrics)

	if got := len(m.ActiveAlerts()); got != 2 {
		t.Errorf("got %d alerts, want 2 after throttle window", got)
	}
}

func TestResolveAlert_LiftsThrottle(t *testing.T) {
	clock := newManualClock()
	m := NewMonitor(WithClock(clock.Now))

	metrics := healthyMetrics("ranker-v2")
	metrics.Accuracy = 0.4
	m.RecordModelPerformance(metrics)

	alerts := m.ActiveAlerts()
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if err := m.ResolveAlert(alerts[0].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	clock.Advance(time.Minute)
	m.RecordModelPerformance(metrics)
	if got := len(m.ActiveAlerts()); got != 1 {
		t.Errorf("got %d active alerts, want 1 fresh alert after resolve", got)
	}

	if err := m.ResolveAlert("no-such-alert"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestRecordModelPerformance_HistoryBounded(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < performanceHistoryCap+5; i++ {
		m.RecordModelPerformance(healthyMetrics("ranker-v2"))
	}

	status, err := m.ModelHealth("ranker-v2")
	if err != nil {
		t.Fatalf("model health: %v", err)
	}
	if status.Samples != performanceHistoryCap {
		t.Errorf("samples = %d, want %d", status.Samples, performanceHistoryCap)
	}
}

func TestModelHealth_Unknown(t *testing.T) {
	m := NewMonitor()
	if _, err := m.ModelHealth("ghost"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestDetectDataDrift_IdenticalDistributions(t *testing.T) {
	m := NewMonitor()

	sample := make([]float64, 200)
	for i := range sample {
		sample[i] = float64(i%50) / 50
	}

	report := m.DetectDataDrift("prompt_length", sample, sample)
	if report.IsDrifting {
		t.Error("identical samples must not drift")
	}
	if report.Statistic > 0.05 {
		t.Errorf("statistic = %f, want ~0", report.Statistic)
	}
	if len(m.ActiveAlerts()) != 0 {
		t.Error("no alert expected without drift")
	}
}

func TestDetectDataDrift_ShiftedDistributions(t *testing.T) {
	m := NewMonitor()

	current := make([]float64, 100)
	reference := make([]float64, 100)
	for i := range current {
		current[i] = 5 + float64(i)/100
		reference[i] = float64(i) / 100
	}

	report := m.DetectDataDrift("prompt_length", current, reference)
	if !report.IsDrifting {
		t.Fatal("disjoint samples must drift")
	}
	if report.Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical", report.Severity)
	}
	if len(report.CurrentHistogram) != driftHistogramBins ||
		len(report.ReferenceHistogram) != driftHistogramBins {
		t.Error("histograms must have 10 bins")
	}
	total := 0
	for _, n := range report.CurrentHistogram {
		total += n
	}
	if total != len(current) {
		t.Errorf("histogram counts sum to %d, want %d", total, len(current))
	}

	alerts := m.ActiveAlerts()
	if len(alerts) != 1 || alerts[0].Metric != "drift:prompt_length" {
		t.Errorf("expected one drift alert, got %+v", alerts)
	}
}

func TestSweep_MarksStaleModelOffline(t *testing.T) {
	clock := newManualClock()
	m := NewMonitor(WithClock(clock.Now))

	m.RecordModelPerformance(healthyMetrics("ranker-v2"))
	clock.Advance(11 * time.Minute)
	m.Sweep()

	status, err := m.ModelHealth("ranker-v2")
	if err != nil {
		t.Fatalf("model health: %v", err)
	}
	if status.State != StateOffline {
		t.Errorf("state = %s, want offline", status.State)
	}
	if status.Remediation == "" {
		t.Error("offline status must carry remediation text")
	}
}

func TestSweep_PrunesAgedHistoryAndAlerts(t *testing.T) {
	clock := newManualClock()
	m := NewMonitor(WithClock(clock.Now))

	bad := healthyMetrics("ranker-v2")
	bad.Accuracy = 0.4
	m.RecordModelPerformance(bad)
	m.RecordModelPerformance(healthyMetrics("ranker-v2"))

	clock.Advance(8 * 24 * time.Hour)
	m.RecordModelPerformance(healthyMetrics("ranker-v2"))
	m.Sweep()

	status, err := m.ModelHealth("ranker-v2")
	if err != nil {
		t.Fatalf("model health: %v", err)
	}
	if status.Samples != 1 {
		t.Errorf("samples = %d, want 1 after pruning", status.Samples)
	}
	if got := len(m.Alerts()); got != 0 {
		t.Errorf("got %d retained alerts, want 0 after pruning", got)
	}
}
