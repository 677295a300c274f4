// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitor tracks model health, detects data drift, and raises
// throttled alerts. All state is in-memory and bounded; the periodic
// sweep ages out stale models and old history.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/personalize/bounded"
	"github.com/AleutianAI/AleutianStudio/services/personalize/telemetry"
)

// History bounds and retention.
const (
	performanceHistoryCap = 1000
	offlineAfter          = 10 * time.Minute
	retentionWindow       = 7 * 24 * time.Hour
)

// Two-tier performance thresholds. A metric past its warning threshold
// degrades the model to warning; past its critical threshold, to
// critical. Accuracy is a floor, the rest are ceilings.
const (
	accuracyWarn = 0.70
	accuracyCrit = 0.50

	latencyWarnMs = 2000.0
	latencyCritMs = 5000.0

	errorRateWarn = 0.05
	errorRateCrit = 0.15

	memoryWarnMB = 2048.0
	memoryCritMB = 4096.0

	cpuWarn = 0.80
	cpuCrit = 0.95
)

// ErrModelNotFound indicates the monitor has no record of the model.
var ErrModelNotFound = errors.New("model not found")

// HealthState is the health classification of a model.
type HealthState string

const (
	StateHealthy  HealthState = "healthy"
	StateWarning  HealthState = "warning"
	StateCritical HealthState = "critical"
	StateOffline  HealthState = "offline"
)

// PerformanceMetrics is one observation of a model's runtime behavior.
type PerformanceMetrics struct {
	ModelID   string    `json:"model_id"`
	Accuracy  float64   `json:"accuracy"`
	LatencyMs float64   `json:"latency_ms"`
	ErrorRate float64   `json:"error_rate"`
	MemoryMB  float64   `json:"memory_mb"`
	CPUUtil   float64   `json:"cpu_util"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the monitor's current judgment of one model.
type HealthStatus struct {
	ModelID     string      `json:"model_id"`
	State       HealthState `json:"state"`
	Issues      []string    `json:"issues,omitempty"`
	Remediation string      `json:"remediation,omitempty"`
	LastUpdate  time.Time   `json:"last_update"`
	Samples     int         `json:"samples"`
}

// modelState is the per-model record. The history list has its own
// lock; status fields are guarded by the Monitor mutex.
type modelState struct {
	history     *bounded.List[PerformanceMetrics]
	state       HealthState
	issues      []string
	remediation string
	lastUpdate  time.Time
}

// Monitor watches model performance and data distributions.
//
// # Thread Safety
//
// Safe for concurrent use. A single mutex guards the model and alert
// maps; per-model history appends go through the list's own lock.
type Monitor struct {
	mu     sync.Mutex
	models map[string]*modelState
	alerts []*Alert

	driftThreshold float64
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	now            func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithMetrics attaches service metrics; fired alerts are counted on
// them. Nil leaves alert counting off.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithDriftThreshold overrides the default KS drift threshold of 0.3.
func WithDriftThreshold(threshold float64) Option {
	return func(m *Monitor) { m.driftThreshold = threshold }
}

// WithClock overrides the time source. The returned times must carry a
// monotonic reading for alert throttling; tests substitute a manual
// clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		models:         make(map[string]*modelState),
		driftThreshold: defaultDriftThreshold,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordModelPerformance appends one observation and recomputes the
// model's health.
//
// # Description
//
// History is bounded at 1000 observations per model. Each tracked
// metric is checked against its warning and critical thresholds; the
// worst breached tier becomes the model's state, with remediation text
// naming every breached metric. A warning or critical state raises one
// throttled alert per breached metric.
func (m *Monitor) RecordModelPerformance(metrics PerformanceMetrics) HealthStatus {
	if metrics.Timestamp.IsZero() {
		metrics.Timestamp = m.now()
	}

	m.mu.Lock()
	ms, ok := m.models[metrics.ModelID]
	if !ok {
		ms = &modelState{history: bounded.NewList[PerformanceMetrics](performanceHistoryCap)}
		m.models[metrics.ModelID] = ms
	}
	m.mu.Unlock()

	ms.history.Append(metrics)

	state, issues, remediation := evaluateThresholds(metrics)

	m.mu.Lock()
	ms.state = state
	ms.issues = issues
	ms.remediation = remediation
	ms.lastUpdate = m.now()
	status := m.statusLocked(metrics.ModelID, ms)
	m.mu.Unlock()

	if state != StateHealthy {
		for _, issue := range issues {
			m.fireAlert(issue, metrics.ModelID, severityForState(state),
				fmt.Sprintf("model %s: %s (%s)", metrics.ModelID, issue, state))
		}
	}
	return status
}

// ModelHealth returns the current health of one model.
func (m *Monitor) ModelHealth(modelID string) (HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.models[modelID]
	if !ok {
		return HealthStatus{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	return m.statusLocked(modelID, ms), nil
}

// AllModelHealth returns the health of every tracked model.
func (m *Monitor) AllModelHealth() []HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]HealthStatus, 0, len(m.models))
	for id, ms := range m.models {
		out = append(out, m.statusLocked(id, ms))
	}
	return out
}

// statusLocked builds a HealthStatus snapshot. Caller holds m.mu.
func (m *Monitor) statusLocked(modelID string, ms *modelState) HealthStatus {
	issues := make([]string, len(ms.issues))
	copy(issues, ms.issues)
	return HealthStatus{
		ModelID:     modelID,
		State:       ms.state,
		Issues:      issues,
		Remediation: ms.remediation,
		LastUpdate:  ms.lastUpdate,
		Samples:     ms.history.Len(),
	}
}

// evaluateThresholds classifies one observation against the two-tier
// thresholds.
func evaluateThresholds(metrics PerformanceMetrics) (HealthState, []string, string) {
	type check struct {
		name     string
		breached func(warn bool) bool
		remedy   string
	}
	checks := []check{
		{"accuracy", func(warn bool) bool {
			if warn {
				return metrics.Accuracy < accuracyWarn
			}
			return metrics.Accuracy < accuracyCrit
		}, "retrain or roll back the model"},
		{"latency", func(warn bool) bool {
			if warn {
				return metrics.LatencyMs > latencyWarnMs
			}
			return metrics.LatencyMs > latencyCritMs
		}, "scale out inference or reduce batch size"},
		{"error_rate", func(warn bool) bool {
			if warn {
				return metrics.ErrorRate > errorRateWarn
			}
			return metrics.ErrorRate > errorRateCrit
		}, "inspect recent failures and input validation"},
		{"memory", func(warn bool) bool {
			if warn {
				return metrics.MemoryMB > memoryWarnMB
			}
			return metrics.MemoryMB > memoryCritMB
		}, "check for cache growth or raise the memory limit"},
		{"cpu", func(warn bool) bool {
			if warn {
				return metrics.CPUUtil > cpuWarn
			}
			return metrics.CPUUtil > cpuCrit
		}, "add replicas or throttle request intake"},
	}

	state := StateHealthy
	var issues []string
	var remedies []string
	for _, c := range checks {
		switch {
		case c.breached(false):
			state = StateCritical
			issues = append(issues, c.name)
			remedies = append(remedies, c.remedy)
		case c.breached(true):
			if state == StateHealthy {
				state = StateWarning
			}
			issues = append(issues, c.name)
			remedies = append(remedies, c.remedy)
		}
	}

	remediation := ""
	for i, r := range remedies {
		if i > 0 {
			remediation += "; "
		}
		remediation += r
	}
	return state, issues, remediation
}

func severityForState(state HealthState) Severity {
	if state == StateCritical {
		return SeverityCritical
	}
	return SeverityWarning
}
