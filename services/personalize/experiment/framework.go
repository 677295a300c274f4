// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

// splitTolerance bounds how far a caller-supplied traffic split may sum
// from 1 before creation is rejected.
const splitTolerance = 0.01

// defaultSignificanceLevel is the p-value threshold when a config does
// not set one.
const defaultSignificanceLevel = 0.05

// Sample thresholds for the analysis verdict.
const (
	conclusiveMinSamples   = 100
	inconclusiveMinSamples = 1000
)

// Sentinel errors for config validation and lifecycle transitions.
var (
	ErrInvalidConfig  = errors.New("invalid experiment config")
	ErrMalformedSplit = errors.New("traffic split does not sum to 1")
	ErrTestNotFound   = errors.New("experiment not found")
	ErrTestNotActive  = errors.New("experiment is not active")
	ErrNotEligible    = errors.New("user is not eligible for experiment")
)

// Framework manages experiment lifecycle, assignment, and analysis.
//
// # Thread Safety
//
// Safe for concurrent use. Assignment is a pure function of
// (userID, testID, config), so a race between two first-call
// assignments resolves to the same stored value.
type Framework struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Framework.
type Option func(*Framework)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framework) { f.logger = logger }
}

// WithClock overrides the time source. Tests use this to pin
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Framework) { f.now = now }
}

// NewFramework creates an experiment framework on the given store.
func NewFramework(st storage.Store, opts ...Option) *Framework {
	f := &Framework{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateTest validates and persists a new experiment in draft status.
//
// # Description
//
// Rejects configs with fewer than two variants, more than one control,
// an audience percentage outside (0, 1], or a traffic split summing
// outside [0.99, 1.01]. A config whose splits are all zero gets an
// equal split. Missing audience percentage defaults to 1 and missing
// significance level defaults to 0.05.
//
// # Outputs
//
//   - *Config: The stored config with id, defaults, and timestamps
//     filled in.
//   - error: ErrInvalidConfig or ErrMalformedSplit on rejection.
func (f *Framework) CreateTest(ctx context.Context, cfg Config) (*Config, error) {
	if err := configValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	controls := 0
	for _, v := range cfg.Variants {
		if v.Control {
			controls++
		}
	}
	if controls > 1 {
		return nil, fmt.Errorf("%w: %d variants marked control", ErrInvalidConfig, controls)
	}

	var sum float64
	for _, v := range cfg.Variants {
		sum += v.Split
	}
	switch {
	case sum == 0:
		equal := 1.0 / float64(len(cfg.Variants))
		for i := range cfg.Variants {
			cfg.Variants[i].Split = equal
		}
	case math.Abs(sum-1) > splitTolerance:
		return nil, fmt.Errorf("%w: sum=%.4f", ErrMalformedSplit, sum)
	}

	if cfg.Audience.Percentage == 0 {
		cfg.Audience.Percentage = 1
	}
	if cfg.Audience.Percentage <= 0 || cfg.Audience.Percentage > 1 {
		return nil, fmt.Errorf("%w: audience percentage %.4f outside (0,1]",
			ErrInvalidConfig, cfg.Audience.Percentage)
	}

	if cfg.SignificanceLevel == 0 {
		cfg.SignificanceLevel = defaultSignificanceLevel
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.Status = StatusDraft
	cfg.CreatedAt = f.now()

	if err := f.saveConfig(ctx, &cfg); err != nil {
		return nil, err
	}
	f.logger.Info("experiment created",
		"test_id", cfg.ID, "name", cfg.Name, "variants", len(cfg.Variants))
	return &cfg, nil
}

// StartTest transitions a draft or paused experiment to active and
// stamps the start time.
func (f *Framework) StartTest(ctx context.Context, testID string) (*Config, error) {
	cfg, err := f.loadConfig(ctx, testID)
	if err != nil {
		return nil, err
	}
	if cfg.Status != StatusDraft && cfg.Status != StatusPaused {
		return nil, fmt.Errorf("cannot start experiment %s in status %s", testID, cfg.Status)
	}
	cfg.Status = StatusActive
	cfg.StartedAt = f.now()
	if err := f.saveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	f.logger.Info("experiment started", "test_id", testID)
	return cfg, nil
}

// PauseTest transitions an active experiment to paused. Assignments
// already made remain pinned.
func (f *Framework) PauseTest(ctx context.Context, testID string) (*Config, error) {
	cfg, err := f.loadConfig(ctx, testID)
	if err != nil {
		return nil, err
	}
	if cfg.Status != StatusActive {
		return nil, fmt.Errorf("cannot pause experiment %s in status %s", testID, cfg.Status)
	}
	cfg.Status = StatusPaused
	if err := f.saveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	f.logger.Info("experiment paused", "test_id", testID)
	return cfg, nil
}

// StopTest completes an experiment and moves its config to history.
func (f *Framework) StopTest(ctx context.Context, testID, reason string) (*Config, error) {
	cfg, err := f.loadConfig(ctx, testID)
	if err != nil {
		return nil, err
	}
	cfg.Status = StatusCompleted
	cfg.EndedAt = f.now()
	cfg.StopReason = reason

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode experiment config: %w", err)
	}
	if err := f.store.Set(ctx, storage.NSExperimentHistory, testID, raw); err != nil {
		return nil, fmt.Errorf("archive experiment: %w", err)
	}
	if err := f.store.Delete(ctx, storage.NSExperiments, testID); err != nil {
		return nil, fmt.Errorf("remove active experiment: %w", err)
	}
	f.logger.Info("experiment stopped", "test_id", testID, "reason", reason)
	return cfg, nil
}

// RecordTestResult appends one exposure outcome and evaluates whether
// the experiment can auto-stop.
//
// # Description
//
// Results are append-only. After the append the test is re-analyzed;
// a conclusive or inconclusive verdict stops the test with the verdict
// as the stop reason.
func (f *Framework) RecordTestResult(ctx context.Context, result Result) error {
	cfg, err := f.loadConfig(ctx, result.TestID)
	if err != nil {
		return err
	}
	if cfg.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrTestNotActive, result.TestID)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = f.now()
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode experiment result: %w", err)
	}
	if err := f.store.Append(ctx, storage.NSResults, result.TestID, raw, 0); err != nil {
		return fmt.Errorf("append experiment result: %w", err)
	}

	analysis, err := f.AnalyzeTest(ctx, result.TestID)
	if err != nil {
		return err
	}
	if analysis.Verdict != VerdictRunning {
		if _, err := f.StopTest(ctx, result.TestID, string(analysis.Verdict)); err != nil {
			return err
		}
	}
	return nil
}

// GetTest returns a config by id, checking active experiments first and
// then history.
func (f *Framework) GetTest(ctx context.Context, testID string) (*Config, error) {
	cfg, err := f.loadConfig(ctx, testID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrTestNotFound) {
		return nil, err
	}
	raw, err := f.store.Get(ctx, storage.NSExperimentHistory, testID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
		}
		return nil, err
	}
	var archived Config
	if err := json.Unmarshal(raw, &archived); err != nil {
		return nil, fmt.Errorf("decode archived experiment: %w", err)
	}
	return &archived, nil
}

func (f *Framework) loadConfig(ctx context.Context, testID string) (*Config, error) {
	raw, err := f.store.Get(ctx, storage.NSExperiments, testID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testID)
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode experiment config: %w", err)
	}
	return &cfg, nil
}

func (f *Framework) saveConfig(ctx context.Context, cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode experiment config: %w", err)
	}
	if err := f.store.Set(ctx, storage.NSExperiments, cfg.ID, raw); err != nil {
		return fmt.Errorf("save experiment config: %w", err)
	}
	return nil
}
