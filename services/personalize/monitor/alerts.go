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
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// alertThrottle suppresses a repeat alert for the same (metric, model)
// pair while an unresolved alert for that pair is younger than this.
const alertThrottle = 30 * time.Minute

// ErrAlertNotFound indicates an unknown alert id.
var ErrAlertNotFound = errors.New("alert not found")

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one raised condition.
type Alert struct {
	ID         string    `json:"id"`
	Metric     string    `json:"metric"`
	ModelID    string    `json:"model_id"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	FiredAt    time.Time `json:"fired_at"`
	Resolved   bool      `json:"resolved"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// fireAlert raises an alert unless an unresolved alert for the same
// (metric, model) pair fired within the throttle window. Time
// comparison rides time.Time's monotonic reading so wall-clock jumps
// cannot defeat the throttle.
func (m *Monitor) fireAlert(metric, modelID string, severity Severity, message string) *Alert {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.Metric == metric && a.ModelID == modelID && !a.Resolved &&
			now.Sub(a.FiredAt) < alertThrottle {
			return nil
		}
	}

	alert := &Alert{
		ID:       uuid.NewString(),
		Metric:   metric,
		ModelID:  modelID,
		Severity: severity,
		Message:  message,
		FiredAt:  now,
	}
	m.alerts = append(m.alerts, alert)
	if m.metrics != nil {
		m.metrics.AlertsFiredTotal.Add(context.Background(), 1,
			otelmetric.WithAttributes(
				attribute.String("severity", string(severity)),
				attribute.String("metric", metric),
				attribute.String("model_id", modelID)))
	}
	m.logger.Warn("alert fired",
		"alert_id", alert.ID, "metric", metric, "model_id", modelID,
		"severity", severity)
	return alert
}

// ResolveAlert marks an alert resolved. A resolved alert no longer
// suppresses new alerts for its (metric, model) pair.
func (m *Monitor) ResolveAlert(alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == alertID {
			if !a.Resolved {
				a.Resolved = true
				a.ResolvedAt = m.now()
				m.logger.Info("alert resolved", "alert_id", alertID)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
}

// ActiveAlerts returns unresolved alerts, oldest first.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Alert
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// Alerts returns every retained alert, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	return out
}
