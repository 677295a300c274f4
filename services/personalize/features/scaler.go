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

import "sync"

// ScalerRegistry holds one online min-max scaler per feature name.
//
// # Description
//
// Scalers observe values as vectors are built and normalize against the
// extremes seen so far. Normalization is unstable until a feature has
// enough samples; that is expected behavior, not a defect, and callers
// get 0.5 until the observed range is non-degenerate.
//
// # Thread Safety
//
// Safe for concurrent use. Each scaler update is a read-modify-write
// under that scaler's own lock, so overlapping extremes from concurrent
// writers are never lost.
type ScalerRegistry struct {
	mu      sync.RWMutex
	scalers map[string]*minMaxScaler
}

type minMaxScaler struct {
	mu  sync.Mutex
	n   int
	min float64
	max float64
}

// NewScalerRegistry creates an empty registry.
func NewScalerRegistry() *ScalerRegistry {
	return &ScalerRegistry{scalers: make(map[string]*minMaxScaler)}
}

// ObserveAndNormalize folds value into the named scaler and returns the
// min-max normalized result in [0, 1].
//
// # Outputs
//
//   - float64: (value-min)/(max-min), or 0.5 while the observed range
//     is still degenerate (fewer than two distinct values).
func (r *ScalerRegistry) ObserveAndNormalize(name string, value float64) float64 {
	sc := r.scaler(name)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.n == 0 {
		sc.min = value
		sc.max = value
	} else {
		if value < sc.min {
			sc.min = value
		}
		if value > sc.max {
			sc.max = value
		}
	}
	sc.n++

	if sc.max == sc.min {
		return 0.5
	}
	return (value - sc.min) / (sc.max - sc.min)
}

// SampleCount returns how many values the named scaler has observed.
func (r *ScalerRegistry) SampleCount(name string) int {
	r.mu.RLock()
	sc, ok := r.scalers[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.n
}

// scaler returns the scaler for name, creating it on first use.
func (r *ScalerRegistry) scaler(name string) *minMaxScaler {
	r.mu.RLock()
	sc, ok := r.scalers[name]
	r.mu.RUnlock()
	if ok {
		return sc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok = r.scalers[name]; ok {
		return sc
	}
	sc = &minMaxScaler{}
	r.scalers[name] = sc
	return sc
}
