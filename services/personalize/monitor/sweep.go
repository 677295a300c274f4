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
	"time"
)

// defaultSweepInterval is how often Run executes a sweep.
const defaultSweepInterval = time.Minute

// Sweep ages out stale state in one pass.
//
// # Description
//
// Marks models offline after 10 minutes without an update, prunes
// performance history older than 7 days, and drops alerts older than
// 7 days. History pruning builds the surviving copy in full before
// swapping it in, so a mid-sweep failure never leaves a history
// partially truncated. Each sweep is independent; a skipped or failed
// sweep is simply redone on the next tick.
func (m *Monitor) Sweep() {
	now := m.now()
	cutoff := now.Add(-retentionWindow)

	m.mu.Lock()
	var stale []string
	for id, ms := range m.models {
		if ms.state != StateOffline && now.Sub(ms.lastUpdate) > offlineAfter {
			ms.state = StateOffline
			ms.issues = nil
			ms.remediation = "model has stopped reporting; check the serving process"
			stale = append(stale, id)
		}
	}

	kept := m.alerts[:0:0]
	for _, a := range m.alerts {
		if a.FiredAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	prunedAlerts := len(m.alerts) - len(kept)
	m.alerts = kept
	m.mu.Unlock()

	prunedHistory := 0
	m.mu.Lock()
	histories := make([]*modelState, 0, len(m.models))
	for _, ms := range m.models {
		histories = append(histories, ms)
	}
	m.mu.Unlock()
	for _, ms := range histories {
		prunedHistory += ms.history.Prune(func(p PerformanceMetrics) bool {
			return p.Timestamp.After(cutoff)
		})
	}

	for _, id := range stale {
		m.logger.Warn("model marked offline", "model_id", id)
	}
	if prunedHistory > 0 || prunedAlerts > 0 {
		m.logger.Info("sweep pruned aged state",
			"history_removed", prunedHistory, "alerts_removed", prunedAlerts)
	}
}

// Run sweeps on a fixed interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
