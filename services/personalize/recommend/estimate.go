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
	"context"
	"encoding/json"
	"errors"

	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

// Device and network multipliers for time estimation.
const (
	timeMultMobile    = 1.2
	timeMultTablet    = 1.1
	timeMultSlow      = 1.5
	timeMultPerImage  = 0.25
	paramScaleMobile  = 0.75 // resolution scale-down on mobile
	paramScaleSlowNet = 0.8  // step scale-down on slow networks
	minSimilarSamples = 3    // minimum similar-context samples for estimates
)

// suggestParams derives suggested parameters from the user's historical
// mean on this tool, adjusted for device and network, falling back to
// the tool defaults.
func (e *Engine) suggestParams(ctx context.Context, tool Tool, rc Context) map[string]float64 {
	params := e.historicalParamMeans(ctx, tool.ID, rc.UserID)
	if len(params) == 0 {
		params = make(map[string]float64, len(tool.DefaultParams))
		for k, v := range tool.DefaultParams {
			params[k] = v
		}
	}
	if len(params) == 0 {
		return nil
	}

	if rc.Device == "mobile" {
		if res, ok := params["resolution"]; ok {
			params["resolution"] = res * paramScaleMobile
		}
	}
	if rc.NetworkSpeed == "slow" {
		if steps, ok := params["steps"]; ok {
			params["steps"] = steps * paramScaleSlowNet
		}
	}
	return params
}

// historicalParamMeans averages the user's recorded parameters on this
// tool across its retained usage history.
func (e *Engine) historicalParamMeans(ctx context.Context, toolID, userID string) map[string]float64 {
	if userID == "" {
		return nil
	}
	rawList, err := e.store.GetList(ctx, storage.NSToolUsage, toolID)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			e.logger.Debug("tool usage lookup failed", "tool_id", toolID, "error", err)
		}
		return nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, raw := range rawList {
		var u UsageRecord
		if err := json.Unmarshal(raw, &u); err != nil {
			continue
		}
		if u.UserID != userID {
			continue
		}
		for k, v := range u.Params {
			sums[k] += v
			counts[k]++
		}
	}
	if len(sums) == 0 {
		return nil
	}

	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

// estimateQuality predicts quality from similar-context history, falling
// back to the tool baseline.
func (e *Engine) estimateQuality(tool Tool, rc Context, history []UsageRecord) float64 {
	var sum float64
	n := 0
	for _, u := range history {
		if u.Device != rc.Device || u.NetworkSpeed != rc.NetworkSpeed {
			continue
		}
		if u.QualityScore <= 0 {
			continue
		}
		sum += u.QualityScore
		n++
	}
	if n >= minSimilarSamples {
		return clamp(sum/float64(n), 0, 100)
	}
	return clamp(tool.BaselineQuality, 0, 100)
}

// estimateTime applies the device, network, and image-count multipliers
// to the tool's baseline.
func estimateTime(tool Tool, rc Context) int64 {
	t := float64(tool.BaseTimeMs)
	switch rc.Device {
	case "mobile":
		t *= timeMultMobile
	case "tablet":
		t *= timeMultTablet
	}
	if rc.NetworkSpeed == "slow" {
		t *= timeMultSlow
	}
	if rc.ImageCount > 0 {
		t *= 1 + timeMultPerImage*float64(rc.ImageCount)
	}
	return int64(t)
}
