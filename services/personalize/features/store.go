// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package features aggregates raw usage events into per-user and
// per-generation feature records and numeric feature vectors. All scores
// are explicit, versioned heuristic functions of the aggregates, never
// learned parameters.
package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/AleutianAI/AleutianStudio/services/personalize/stats"
	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

const (
	// userEventHistoryCap bounds the raw event list kept per user.
	userEventHistoryCap = 500

	// generationHistoryCap bounds the rolling GenerationFeatures
	// history kept per user.
	generationHistoryCap = 500

	// recentOutcomeWindow is how many recent outcomes feed the
	// learning-curve estimate.
	recentOutcomeWindow = 20

	// recordShardCount stripes the record locks so same-key
	// read-modify-writes serialize without funneling every key through
	// one lock.
	recordShardCount = 64
)

// Store is the feature store service.
//
// # Description
//
// Owns user aggregates, generation feature records, and the shared
// normalization scalers. All state lives behind the storage port, so any
// backend with namespaced get/set/append suffices.
//
// # Thread Safety
//
// Safe for concurrent use. Aggregate and generation-record updates are
// load-modify-save sequences; they serialize on a striped per-key lock
// inside the Store, because the storage layer's locking only covers one
// Get or Set at a time and cannot prevent lost updates across the
// sequence.
type Store struct {
	store       storage.Store
	scalers     *ScalerRegistry
	logger      *slog.Logger
	recordLocks [recordShardCount]sync.Mutex
}

// recordLock returns the stripe guarding load-modify-save sequences for
// one record key.
func (s *Store) recordLock(key string) *sync.Mutex {
	return &s.recordLocks[xxhash.Sum64String(key)&(recordShardCount-1)]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithScalers sets a shared scaler registry. Useful when several
// components must agree on normalization state.
func WithScalers(r *ScalerRegistry) StoreOption {
	return func(s *Store) { s.scalers = r }
}

// NewStore creates a feature store backed by the given storage.
func NewStore(st storage.Store, opts ...StoreOption) *Store {
	s := &Store{
		store:   st,
		scalers: NewScalerRegistry(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordBehavior ingests one interaction event: appends it to the user's
// bounded raw-event history and folds it into the user aggregate.
//
// Fire-and-forget semantics: storage failures are returned but callers on
// the generation path are expected to log and continue.
func (s *Store) RecordBehavior(ctx context.Context, event InteractionEvent) error {
	if event.UserID == "" {
		return errors.New("event missing user id")
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.store.Append(ctx, storage.NSUserEvents, event.UserID, raw, userEventHistoryCap); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.ExtractUserFeatures(ctx, event.UserID, []InteractionEvent{event})
	return err
}

// ExtractUserFeatures merges cached per-user aggregates with new events
// and recomputes the derived scores.
//
// # Description
//
// The cached record is loaded (or created on first sight of the user),
// the events are folded into the raw counters, and every derived field is
// recomputed deterministically:
//
//   - SuccessRate   = successes / total
//   - PreferredHours = top-3 most frequent hours
//   - MostUsedTools  = top-5 tools by frequency
//   - ExplorationScore = min(distinctTools/10, 1)
//   - ConsistencyScore = sum over tools of usageShare^2
//   - LearningCurve = 0.5 + (recentRate - lifetimeRate)/2, clamped
//
// # Inputs
//
//   - ctx: Request context.
//   - userID: The user.
//   - recent: New events to fold in. May be empty for a pure read.
//
// # Outputs
//
//   - *UserFeatures: The updated aggregate. A brand-new user with no
//     events gets a zero-count record with neutral derived scores.
//   - error: Non-nil only on storage or encoding failure.
func (s *Store) ExtractUserFeatures(ctx context.Context, userID string, recent []InteractionEvent) (*UserFeatures, error) {
	lock := s.recordLock("user/" + userID)
	lock.Lock()
	defer lock.Unlock()

	uf, err := s.loadUserFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, ev := range recent {
		uf.TotalGenerations++
		if ev.Success {
			uf.SuccessCount++
		}
		hour := ev.Timestamp.Hour()
		uf.HourCounts[hour]++
		if ev.ToolID != "" {
			uf.ToolCounts[ev.ToolID]++
		}
		uf.RecentOutcomes = append(uf.RecentOutcomes, ev.Success)
		if len(uf.RecentOutcomes) > recentOutcomeWindow {
			uf.RecentOutcomes = uf.RecentOutcomes[len(uf.RecentOutcomes)-recentOutcomeWindow:]
		}
		if ev.Timestamp.After(uf.LastUpdated) {
			uf.LastUpdated = ev.Timestamp
		}
	}

	s.recomputeDerived(uf)

	if len(recent) > 0 {
		if err := s.saveUserFeatures(ctx, uf); err != nil {
			return nil, err
		}
	}
	return uf, nil
}

// recomputeDerived recalculates every derived field from the raw counters.
func (s *Store) recomputeDerived(uf *UserFeatures) {
	if uf.TotalGenerations > 0 {
		uf.SuccessRate = float64(uf.SuccessCount) / float64(uf.TotalGenerations)
	} else {
		uf.SuccessRate = 0
	}

	uf.PreferredHours = topHours(uf.HourCounts, 3)
	uf.MostUsedTools = topTools(uf.ToolCounts, 5)

	uf.ExplorationScore = math.Min(float64(len(uf.ToolCounts))/10, 1)

	// Herfindahl concentration of tool usage. One tool only = 1.0,
	// perfectly spread usage tends toward 1/n.
	uf.ConsistencyScore = 0
	if uf.TotalGenerations > 0 {
		total := 0
		for _, c := range uf.ToolCounts {
			total += c
		}
		if total > 0 {
			var h float64
			for _, c := range uf.ToolCounts {
				p := float64(c) / float64(total)
				h += p * p
			}
			uf.ConsistencyScore = clamp01(h)
		}
	}

	uf.LearningCurve = 0.5
	if len(uf.RecentOutcomes) >= 5 && uf.TotalGenerations > 0 {
		recentSuccess := 0
		for _, ok := range uf.RecentOutcomes {
			if ok {
				recentSuccess++
			}
		}
		recentRate := float64(recentSuccess) / float64(len(uf.RecentOutcomes))
		uf.LearningCurve = clamp01(0.5 + (recentRate-uf.SuccessRate)/2)
	}
}

// PreferredTools returns the user's behavior-preferred tools and a
// confidence score.
//
// # Outputs
//
//   - []string: Top tools by usage, may be empty for new users.
//   - float64: Confidence in [0, 1]; min(total/50, 1), floored at the
//     0.5 neutral default minus the missing-history discount. A user
//     with no history gets (nil, 0.5) rather than an error.
func (s *Store) PreferredTools(ctx context.Context, userID string) ([]string, float64) {
	uf, err := s.loadUserFeatures(ctx, userID)
	if err != nil || uf.TotalGenerations == 0 {
		return nil, 0.5
	}
	confidence := math.Min(float64(uf.TotalGenerations)/50, 1)
	if confidence < 0.5 {
		confidence = 0.5
	}
	return uf.MostUsedTools, confidence
}

// ExtractGenerationFeatures computes the feature record for one
// generation request and persists it, both by id and into the user's
// bounded rolling history.
func (s *Store) ExtractGenerationFeatures(ctx context.Context, req GenerationRequest) (*GenerationFeatures, error) {
	analysis := AnalyzePrompt(req.Prompt)

	gf := &GenerationFeatures{
		GenerationID:     req.GenerationID,
		UserID:           req.UserID,
		ToolID:           req.ToolID,
		Prompt:           req.Prompt,
		PromptLength:     len(req.Prompt),
		PromptComplexity: analysis.Complexity,
		Keywords:         analysis.Keywords,
		Embedding:        pseudoEmbedding(analysis.Keywords),
		Sentiment:        analysis.Sentiment,
		Creativity:       analysis.Creativity,
		Specificity:      analysis.Specificity,
		Device:           req.Device,
		NetworkSpeed:     req.NetworkSpeed,
		Hour:             req.Hour,
		HasImages:        req.HasImages,
		ImageCount:       req.ImageCount,
		CreatedAt:        time.Now().UTC(),
	}

	raw, err := json.Marshal(gf)
	if err != nil {
		return nil, fmt.Errorf("encode generation features: %w", err)
	}
	if err := s.store.Set(ctx, storage.NSGenerationFeatures, gf.GenerationID, raw); err != nil {
		return nil, err
	}
	if req.UserID != "" {
		if err := s.store.Append(ctx, storage.NSGenerationHistory, req.UserID, raw, generationHistoryCap); err != nil {
			return nil, err
		}
	}
	return gf, nil
}

// GetGenerationFeatures loads a generation record by id.
func (s *Store) GetGenerationFeatures(ctx context.Context, generationID string) (*GenerationFeatures, error) {
	raw, err := s.store.Get(ctx, storage.NSGenerationFeatures, generationID)
	if err != nil {
		return nil, err
	}
	var gf GenerationFeatures
	if err := json.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("decode generation features: %w", err)
	}
	return &gf, nil
}

// UpdateGenerationResult records the outcome for a generation.
//
// # Description
//
// The outcome is set exactly once. Repeated identical calls are no-ops
// (idempotent); a conflicting second outcome is logged and the first one
// kept. An unknown generation id is logged and ignored: the generation
// may complete before or after its event record exists, which is a
// documented race, and ingestion must never fail the caller.
func (s *Store) UpdateGenerationResult(ctx context.Context, generationID string, outcome GenerationOutcome) error {
	lock := s.recordLock("gen/" + generationID)
	lock.Lock()
	defer lock.Unlock()

	gf, err := s.GetGenerationFeatures(ctx, generationID)
	if errors.Is(err, storage.ErrKeyNotFound) {
		s.logger.Info("generation result for unknown id ignored",
			"generation_id", generationID)
		return nil
	}
	if err != nil {
		return err
	}

	if gf.Outcome != nil {
		if *gf.Outcome != outcome {
			s.logger.Warn("conflicting generation outcome ignored, keeping first",
				"generation_id", generationID)
		}
		return nil
	}

	gf.Outcome = &outcome
	raw, err := json.Marshal(gf)
	if err != nil {
		return fmt.Errorf("encode generation features: %w", err)
	}
	return s.store.Set(ctx, storage.NSGenerationFeatures, generationID, raw)
}

// RecordSatisfaction attaches an asynchronous 1-5 user rating to a
// generation.
//
// # Description
//
// Ratings arrive on their own schedule, often after the outcome. An
// unknown generation id or a missing outcome is logged and ignored so
// ingestion never fails the caller; a rating already present is kept
// (first rating wins).
func (s *Store) RecordSatisfaction(ctx context.Context, generationID string, rating float64) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %.1f outside [1, 5]", rating)
	}

	lock := s.recordLock("gen/" + generationID)
	lock.Lock()
	defer lock.Unlock()

	gf, err := s.GetGenerationFeatures(ctx, generationID)
	if errors.Is(err, storage.ErrKeyNotFound) {
		s.logger.Info("rating for unknown generation ignored",
			"generation_id", generationID)
		return nil
	}
	if err != nil {
		return err
	}
	if gf.Outcome == nil {
		s.logger.Info("rating before outcome ignored", "generation_id", generationID)
		return nil
	}
	if gf.Outcome.Satisfaction != 0 {
		return nil
	}

	gf.Outcome.Satisfaction = rating
	raw, err := json.Marshal(gf)
	if err != nil {
		return fmt.Errorf("encode generation features: %w", err)
	}
	return s.store.Set(ctx, storage.NSGenerationFeatures, generationID, raw)
}

// vector field order. One-hot categoricals first, then numeric features.
// This order is fixed across calls; tests pin it.
var (
	vectorOneHotNames = []string{
		"device_desktop", "device_mobile", "device_tablet",
		"network_fast", "network_slow",
	}
	vectorNumericNames = []string{
		"user_total_generations", "user_success_rate",
		"user_exploration", "user_consistency", "user_learning_curve",
		"gen_prompt_length", "gen_prompt_complexity",
		"gen_sentiment", "gen_creativity", "gen_specificity", "gen_hour",
	}
)

// CreateFeatureVector builds the fixed-order numeric encoding for a user
// and an optional generation.
//
// # Description
//
// One-hot device and network fields come first, then numeric fields in
// the order of vectorNumericNames. Numeric fields pass through the shared
// online min-max scalers, which mutate as a side effect; early vectors
// normalize against a thin observed range and are expected to be noisy.
func (s *Store) CreateFeatureVector(user *UserFeatures, gen *GenerationFeatures) *FeatureVector {
	names := make([]string, 0, len(vectorOneHotNames)+len(vectorNumericNames))
	values := make([]float64, 0, cap(names))

	device := ""
	network := ""
	contextTag := "user-only"
	if gen != nil {
		device = gen.Device
		network = gen.NetworkSpeed
		contextTag = "generation"
	}

	for _, name := range vectorOneHotNames {
		names = append(names, name)
		values = append(values, oneHot(name, device, network))
	}

	numeric := map[string]float64{
		"user_total_generations": float64(user.TotalGenerations),
		"user_success_rate":      user.SuccessRate,
		"user_exploration":       user.ExplorationScore,
		"user_consistency":       user.ConsistencyScore,
		"user_learning_curve":    user.LearningCurve,
	}
	if gen != nil {
		numeric["gen_prompt_length"] = float64(gen.PromptLength)
		numeric["gen_prompt_complexity"] = gen.PromptComplexity
		numeric["gen_sentiment"] = gen.Sentiment
		numeric["gen_creativity"] = gen.Creativity
		numeric["gen_specificity"] = gen.Specificity
		numeric["gen_hour"] = float64(gen.Hour)
	}

	for _, name := range vectorNumericNames {
		names = append(names, name)
		v, ok := numeric[name]
		if !ok {
			// User-only vectors have no generation slots. Emitting a
			// neutral value without observing it keeps phantom zeros out
			// of the shared gen_* scaler ranges.
			values = append(values, 0.5)
			continue
		}
		values = append(values, s.scalers.ObserveAndNormalize(name, v))
	}

	return &FeatureVector{
		UserID:  user.UserID,
		Values:  values,
		Names:   names,
		Context: contextTag,
	}
}

// oneHot resolves one one-hot field against the device/network context.
func oneHot(name, device, network string) float64 {
	switch name {
	case "device_desktop":
		return boolToFloat(device == "desktop")
	case "device_mobile":
		return boolToFloat(device == "mobile")
	case "device_tablet":
		return boolToFloat(device == "tablet")
	case "network_fast":
		return boolToFloat(network == "fast")
	case "network_slow":
		return boolToFloat(network == "slow")
	}
	return 0
}

// AnalyzeFeatureImportance computes per-feature absolute Pearson
// correlation against a target array.
//
// # Outputs
//
//   - map[string]float64: Feature name to |r|. Empty (never nil) when
//     vectors and targets have different or zero lengths, or vectors
//     disagree on dimensionality. Never panics.
func (s *Store) AnalyzeFeatureImportance(vectors []*FeatureVector, targets []float64) map[string]float64 {
	out := make(map[string]float64)
	if len(vectors) == 0 || len(vectors) != len(targets) {
		return out
	}

	names := vectors[0].Names
	for _, v := range vectors {
		if len(v.Values) != len(names) {
			return out
		}
	}

	column := make([]float64, len(vectors))
	for i, name := range names {
		for j, v := range vectors {
			column[j] = v.Values[i]
		}
		out[name] = math.Abs(stats.Pearson(column, targets))
	}
	return out
}

// loadUserFeatures fetches the cached aggregate or creates a fresh one.
func (s *Store) loadUserFeatures(ctx context.Context, userID string) (*UserFeatures, error) {
	raw, err := s.store.Get(ctx, storage.NSUserFeatures, userID)
	if errors.Is(err, storage.ErrKeyNotFound) {
		uf := &UserFeatures{
			UserID:     userID,
			ToolCounts: make(map[string]int),
		}
		s.recomputeDerived(uf)
		return uf, nil
	}
	if err != nil {
		return nil, err
	}

	var uf UserFeatures
	if err := json.Unmarshal(raw, &uf); err != nil {
		return nil, fmt.Errorf("decode user features: %w", err)
	}
	if uf.ToolCounts == nil {
		uf.ToolCounts = make(map[string]int)
	}
	return &uf, nil
}

func (s *Store) saveUserFeatures(ctx context.Context, uf *UserFeatures) error {
	raw, err := json.Marshal(uf)
	if err != nil {
		return fmt.Errorf("encode user features: %w", err)
	}
	return s.store.Set(ctx, storage.NSUserFeatures, uf.UserID, raw)
}

// topHours returns the n most frequent hours, descending by count with
// earlier hours breaking ties.
func topHours(counts [24]int, n int) []int {
	type hc struct{ hour, count int }
	all := make([]hc, 0, 24)
	for h, c := range counts {
		if c > 0 {
			all = append(all, hc{h, c})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].hour < all[j].hour
	})
	out := make([]int, 0, n)
	for i := 0; i < len(all) && i < n; i++ {
		out = append(out, all[i].hour)
	}
	return out
}

// topTools returns the n most used tools, descending by count with
// lexicographic tie-breaking for determinism.
func topTools(counts map[string]int, n int) []string {
	type tc struct {
		tool  string
		count int
	}
	all := make([]tc, 0, len(counts))
	for t, c := range counts {
		all = append(all, tc{t, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].tool < all[j].tool
	})
	out := make([]string, 0, n)
	for i := 0; i < len(all) && i < n; i++ {
		out = append(out, all[i].tool)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
