// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recommend ranks candidate creative tools for a user's current
// context using feature-store signals, prompt analysis, and per-tool
// usage history.
//
// Absent history never errors: every lookup has a documented neutral
// default (0.5) and a lowered confidence, and the engine always returns
// a non-empty ranked list.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/AleutianAI/AleutianStudio/services/personalize/features"
	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

// Scoring weights. Fixed constants summing to 1; part of the tested
// contract, not tunable at runtime.
const (
	weightBehavior    = 0.30
	weightPromptMatch = 0.25
	weightHistorical  = 0.20
	weightSkillMatch  = 0.15
	weightContextFit  = 0.10
)

// neutralScore is the documented default for any signal with no history.
const neutralScore = 0.5

// toolUsageCap bounds the per-tool usage history.
const toolUsageCap = 500

// primaryCount and alternativeCount split the ranked list.
const (
	primaryCount     = 3
	alternativeCount = 3
)

// ErrEmptyCatalog indicates the engine was constructed without tools.
var ErrEmptyCatalog = errors.New("tool catalog is empty")

// Engine ranks creative tools.
//
// # Thread Safety
//
// Safe for concurrent use; per-tool and per-user history writes
// serialize on the storage layer's per-key locking.
type Engine struct {
	features *features.Store
	store    storage.Store
	catalog  []Tool
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a recommendation engine.
//
// # Inputs
//
//   - fs: Feature store for behavior signals.
//   - st: Storage backend for usage history and skill state.
//   - catalog: The tool catalog; must be non-empty.
func NewEngine(fs *features.Store, st storage.Store, catalog []Tool, opts ...EngineOption) (*Engine, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	e := &Engine{
		features: fs,
		store:    st,
		catalog:  catalog,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetRecommendations ranks tools for the given context.
//
// # Description
//
// Pipeline: behavior signals from the feature store, prompt analysis,
// hard capability filters, fixed weighted-sum scoring, descending sort,
// top-3/next-3 split, then parameter suggestion and quality/time
// estimation per surviving tool. Synchronous and free of network calls.
func (e *Engine) GetRecommendations(ctx context.Context, rc Context) (*Result, error) {
	preferred, behaviorConfidence := e.features.PreferredTools(ctx, rc.UserID)
	analysis := features.AnalyzePrompt(rc.Prompt)
	skill := e.userSkill(ctx, rc.UserID)

	candidates := e.filterCandidates(rc)

	recs := make([]Recommendation, 0, len(candidates))
	for _, tool := range candidates {
		history := e.toolHistory(ctx, tool.ID)
		breakdown := e.score(tool, rc, analysis, preferred, skill, history)

		rec := Recommendation{
			ToolID:           tool.ID,
			ToolName:         tool.Name,
			Score:            breakdown.Total,
			Confidence:       clamp(breakdown.Total*behaviorConfidence*100, 0, 100),
			RequiresImage:    tool.RequiresImage,
			SuggestedParams:  e.suggestParams(ctx, tool, rc),
			EstimatedQuality: e.estimateQuality(tool, rc, history),
			EstimatedTimeMs:  estimateTime(tool, rc),
			Breakdown:        breakdown,
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	result := &Result{
		Confidence:     clamp(behaviorConfidence*100, 0, 100),
		PromptAnalysis: analysis,
	}
	for i, rec := range recs {
		switch {
		case i < primaryCount:
			result.Primary = append(result.Primary, rec)
		case i < primaryCount+alternativeCount:
			result.Alternatives = append(result.Alternatives, rec)
		}
	}
	return result, nil
}

// filterCandidates applies the hard capability filters:
//
//   - no multi-image tools on mobile
//   - only network-light tools on slow networks
//   - no image-requiring tools without supplied images
//
// Filters relax in reverse order of importance if they would empty the
// list; the image-requirement filter never relaxes.
func (e *Engine) filterCandidates(rc Context) []Tool {
	pass := func(tool Tool, strict bool) bool {
		if tool.RequiresImage && !rc.HasImages {
			return false
		}
		if !strict {
			return true
		}
		if tool.SupportsMultiImage && rc.Device == "mobile" {
			return false
		}
		if tool.NetworkHeavy && rc.NetworkSpeed == "slow" {
			return false
		}
		return true
	}

	var out []Tool
	for _, tool := range e.catalog {
		if pass(tool, true) {
			out = append(out, tool)
		}
	}
	if len(out) > 0 {
		return out
	}

	// Context filters emptied the list; keep only the hard image
	// requirement so the ranked list is never empty.
	for _, tool := range e.catalog {
		if pass(tool, false) {
			out = append(out, tool)
		}
	}
	return out
}

// score computes the fixed weighted sum for one candidate.
func (e *Engine) score(tool Tool, rc Context, analysis features.PromptAnalysis,
	preferred []string, skill float64, history []UsageRecord) ScoreBreakdown {

	b := ScoreBreakdown{
		Behavior:    weightBehavior * behaviorScore(tool.ID, preferred),
		PromptMatch: weightPromptMatch * promptMatchScore(tool, analysis),
		Historical:  weightHistorical * historicalScore(history),
		SkillMatch:  weightSkillMatch * (1 - math.Abs(skill-tool.Difficulty)),
		ContextFit:  weightContextFit * contextFitScore(tool, rc),
	}
	b.Total = b.Behavior + b.PromptMatch + b.Historical + b.SkillMatch + b.ContextFit
	return b
}

// behaviorScore ranks tools the user already favors; unknown tools get
// the neutral default.
func behaviorScore(toolID string, preferred []string) float64 {
	for i, p := range preferred {
		if p == toolID {
			return clamp(1-0.15*float64(i), 0, 1)
		}
	}
	return neutralScore
}

// promptMatchScore overlaps tool keywords with prompt keywords, with a
// bonus for a matching category.
func promptMatchScore(tool Tool, analysis features.PromptAnalysis) float64 {
	score := neutralScore
	if len(analysis.Keywords) > 0 && len(tool.Keywords) > 0 {
		toolKw := make(map[string]struct{}, len(tool.Keywords))
		for _, kw := range tool.Keywords {
			toolKw[kw] = struct{}{}
		}
		overlap := 0
		for _, kw := range analysis.Keywords {
			if _, ok := toolKw[kw]; ok {
				overlap++
			}
		}
		score = float64(overlap) / float64(len(analysis.Keywords))
	}
	if tool.Category != "" && tool.Category == analysis.Category {
		score += 0.25
	}
	return clamp(score, 0, 1)
}

// historicalScore blends success rate and mean quality from the tool's
// usage history; no history gives the neutral default.
func historicalScore(history []UsageRecord) float64 {
	if len(history) == 0 {
		return neutralScore
	}
	successes := 0
	var qualitySum float64
	qualityCount := 0
	for _, u := range history {
		if u.Success {
			successes++
		}
		if u.QualityScore > 0 {
			qualitySum += u.QualityScore
			qualityCount++
		}
	}
	successRate := float64(successes) / float64(len(history))
	qualityFactor := neutralScore
	if qualityCount > 0 {
		qualityFactor = qualitySum / float64(qualityCount) / 100
	}
	return clamp(0.5*successRate+0.5*qualityFactor, 0, 1)
}

// contextFitScore penalizes heavy tools in constrained contexts. Relaxed
// candidates can still carry a NetworkHeavy flag here.
func contextFitScore(tool Tool, rc Context) float64 {
	fit := 1.0
	if tool.NetworkHeavy && rc.NetworkSpeed == "slow" {
		fit -= 0.4
	}
	if tool.NetworkHeavy && rc.Device == "mobile" {
		fit -= 0.2
	}
	if tool.BaseTimeMs > 15000 && rc.Device == "mobile" {
		fit -= 0.2
	}
	return clamp(fit, 0, 1)
}

// RecordToolUsage appends one usage outcome to the tool's bounded
// history and recomputes the user's skill level.
//
// # Description
//
// The skill level is recomputed from scratch on every call as
// 0.6*successRate + 0.4*qualityFactor over the user's retained events;
// it is deliberately not smoothed. Unknown tools are logged and ignored
// so ingestion never fails the caller.
func (e *Engine) RecordToolUsage(ctx context.Context, toolID string, usage UsageRecord) error {
	if !e.knownTool(toolID) {
		e.logger.Info("usage for unknown tool ignored", "tool_id", toolID)
		return nil
	}
	usage.ToolID = toolID

	raw, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	if err := e.store.Append(ctx, storage.NSToolUsage, toolID, raw, toolUsageCap); err != nil {
		return fmt.Errorf("append usage: %w", err)
	}

	if usage.UserID != "" {
		if err := e.recomputeSkill(ctx, usage.UserID); err != nil {
			return err
		}
	}
	return nil
}

// recomputeSkill derives the user's skill level from their retained
// events, from scratch.
func (e *Engine) recomputeSkill(ctx context.Context, userID string) error {
	events, err := e.store.GetList(ctx, storage.NSUserEvents, userID)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}

	skill := neutralScore
	if len(events) > 0 {
		successes := 0
		var qualitySum float64
		qualityCount := 0
		for _, raw := range events {
			var ev features.InteractionEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				continue
			}
			if ev.Success {
				successes++
			}
			if ev.QualityScore > 0 {
				qualitySum += ev.QualityScore
				qualityCount++
			}
		}
		successRate := float64(successes) / float64(len(events))
		qualityFactor := neutralScore
		if qualityCount > 0 {
			qualityFactor = qualitySum / float64(qualityCount) / 100
		}
		skill = 0.6*successRate + 0.4*qualityFactor
	}

	raw, err := json.Marshal(skill)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, storage.NSUserSkill, userID, raw)
}

// userSkill loads the user's skill level, defaulting to neutral.
func (e *Engine) userSkill(ctx context.Context, userID string) float64 {
	raw, err := e.store.Get(ctx, storage.NSUserSkill, userID)
	if err != nil {
		return neutralScore
	}
	var skill float64
	if err := json.Unmarshal(raw, &skill); err != nil {
		return neutralScore
	}
	return clamp(skill, 0, 1)
}

// toolHistory loads the tool's retained usage records.
func (e *Engine) toolHistory(ctx context.Context, toolID string) []UsageRecord {
	rawList, err := e.store.GetList(ctx, storage.NSToolUsage, toolID)
	if err != nil {
		return nil
	}
	out := make([]UsageRecord, 0, len(rawList))
	for _, raw := range rawList {
		var u UsageRecord
		if err := json.Unmarshal(raw, &u); err != nil {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (e *Engine) knownTool(toolID string) bool {
	for _, t := range e.catalog {
		if t.ID == toolID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
