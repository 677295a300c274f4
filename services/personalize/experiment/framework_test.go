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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

func baseConfig() Config {
	return Config{
		Name: "new-ranker",
		Variants: []Variant{
			{ID: "control", Control: true, Split: 0.5},
			{ID: "treatment", Split: 0.5},
		},
		Metrics: []string{"quality"},
	}
}

func newTestFramework(t *testing.T) *Framework {
	t.Helper()
	return NewFramework(storage.NewMemoryStore())
}

// ===== Creation and validation =====

func TestCreateTest_DefaultsApplied(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()

	cfg := baseConfig()
	cfg.Variants[0].Split = 0
	cfg.Variants[1].Split = 0

	created, err := f.CreateTest(ctx, cfg)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusDraft, created.Status)
	assert.Equal(t, 0.5, created.Variants[0].Split)
	assert.Equal(t, 0.5, created.Variants[1].Split)
	assert.Equal(t, 1.0, created.Audience.Percentage)
	assert.Equal(t, defaultSignificanceLevel, created.SignificanceLevel)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateTest_Rejections(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()

	single := baseConfig()
	single.Variants = single.Variants[:1]
	_, err := f.CreateTest(ctx, single)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	badSplit := baseConfig()
	badSplit.Variants[0].Split = 0.3
	badSplit.Variants[1].Split = 0.3
	_, err = f.CreateTest(ctx, badSplit)
	assert.ErrorIs(t, err, ErrMalformedSplit)

	twoControls := baseConfig()
	twoControls.Variants[1].Control = true
	_, err = f.CreateTest(ctx, twoControls)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	badAudience := baseConfig()
	badAudience.Audience.Percentage = 1.5
	_, err = f.CreateTest(ctx, badAudience)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	noMetrics := baseConfig()
	noMetrics.Metrics = nil
	_, err = f.CreateTest(ctx, noMetrics)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCreateTest_SplitWithinTolerance(t *testing.T) {
	f := newTestFramework(t)

	cfg := baseConfig()
	cfg.Variants[0].Split = 0.504
	cfg.Variants[1].Split = 0.5

	_, err := f.CreateTest(context.Background(), cfg)
	require.NoError(t, err)
}

// ===== Lifecycle =====

func TestLifecycle_DraftActivePausedCompleted(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()

	created, err := f.CreateTest(ctx, baseConfig())
	require.NoError(t, err)

	// Cannot pause a draft.
	_, err = f.PauseTest(ctx, created.ID)
	require.Error(t, err)

	started, err := f.StartTest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, started.Status)
	assert.False(t, started.StartedAt.IsZero())

	// Cannot start twice.
	_, err = f.StartTest(ctx, created.ID)
	require.Error(t, err)

	paused, err := f.PauseTest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)

	// Paused resumes.
	_, err = f.StartTest(ctx, created.ID)
	require.NoError(t, err)

	stopped, err := f.StopTest(ctx, created.ID, "manual")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stopped.Status)
	assert.Equal(t, "manual", stopped.StopReason)
	assert.False(t, stopped.EndedAt.IsZero())

	// Archived config remains reachable.
	archived, err := f.GetTest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, archived.Status)

	// But no longer accepts results.
	err = f.RecordTestResult(ctx, Result{TestID: created.ID, VariantID: "control"})
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestGetTest_Missing(t *testing.T) {
	f := newTestFramework(t)
	_, err := f.GetTest(context.Background(), "no-such-test")
	assert.ErrorIs(t, err, ErrTestNotFound)
}

// ===== Assignment =====

func startedTest(t *testing.T, f *Framework, cfg Config) *Config {
	t.Helper()
	ctx := context.Background()
	created, err := f.CreateTest(ctx, cfg)
	require.NoError(t, err)
	started, err := f.StartTest(ctx, created.ID)
	require.NoError(t, err)
	return started
}

func TestGetUserVariant_Deterministic(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		first, err := f.GetUserVariant(ctx, userID, cfg.ID, nil)
		require.NoError(t, err)
		for j := 0; j < 3; j++ {
			again, err := f.GetUserVariant(ctx, userID, cfg.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

// Scenario: two variants split [0.5, 0.5] over 1000 distinct users.
func TestGetUserVariant_SplitApproximatelyUniform(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		variant, err := f.GetUserVariant(ctx, fmt.Sprintf("user-%d", i), cfg.ID, nil)
		require.NoError(t, err)
		counts[variant]++
	}

	assert.Equal(t, 1000, counts["control"]+counts["treatment"])
	assert.InDelta(t, 500, counts["control"], 50)
	assert.InDelta(t, 500, counts["treatment"], 50)
}

func TestGetUserVariant_AudiencePercentage(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := baseConfig()
	cfg.Audience.Percentage = 0.5
	started := startedTest(t, f, cfg)

	eligible := 0
	for i := 0; i < 1000; i++ {
		_, err := f.GetUserVariant(ctx, fmt.Sprintf("user-%d", i), started.ID, nil)
		if err == nil {
			eligible++
		} else {
			require.ErrorIs(t, err, ErrNotEligible)
		}
	}
	assert.InDelta(t, 500, eligible, 60)
}

func TestGetUserVariant_ExclusionIsPermanent(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := baseConfig()
	cfg.Audience.Criteria = map[string]string{"tier": "pro"}
	started := startedTest(t, f, cfg)

	_, err := f.GetUserVariant(ctx, "u1", started.ID, map[string]string{"tier": "free"})
	require.ErrorIs(t, err, ErrNotEligible)

	// Matching context later does not readmit the user.
	_, err = f.GetUserVariant(ctx, "u1", started.ID, map[string]string{"tier": "pro"})
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestGetUserVariant_AssignmentSurvivesPause(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	variant, err := f.GetUserVariant(ctx, "u1", cfg.ID, nil)
	require.NoError(t, err)

	_, err = f.PauseTest(ctx, cfg.ID)
	require.NoError(t, err)

	// Existing assignment keeps resolving; new users are refused.
	again, err := f.GetUserVariant(ctx, "u1", cfg.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, variant, again)

	_, err = f.GetUserVariant(ctx, "u2", cfg.ID, nil)
	assert.ErrorIs(t, err, ErrTestNotActive)
}

// ===== Analysis and auto-stop =====

func TestAnalyzeTest_ZeroSampleVariantSkipped(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	for i := 0; i < 5; i++ {
		err := f.RecordTestResult(ctx, Result{
			TestID: cfg.ID, VariantID: "control", UserID: fmt.Sprintf("u%d", i),
			Metrics: map[string]float64{"quality": 70},
		})
		require.NoError(t, err)
	}

	analysis, err := f.AnalyzeTest(ctx, cfg.ID)
	require.NoError(t, err)
	require.Len(t, analysis.Variants, 2)
	assert.Equal(t, VerdictRunning, analysis.Verdict)

	for _, va := range analysis.Variants {
		if va.VariantID == "treatment" {
			assert.Zero(t, va.Samples)
			assert.Empty(t, va.Metrics)
		} else {
			assert.Equal(t, 5, va.Samples)
			assert.InDelta(t, 70, va.Metrics["quality"].Mean, 1e-9)
		}
	}
}

func TestRecordTestResult_AutoStopsConclusive(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	// Treatment clearly beats control with a little jitter so the
	// pooled variance is nonzero.
	for i := 0; i < 100; i++ {
		jitter := -0.01
		if (i/2)%2 == 1 {
			jitter = 0.01
		}
		variant, base := "control", 0.5
		if i%2 == 1 {
			variant, base = "treatment", 0.8
		}
		err := f.RecordTestResult(ctx, Result{
			TestID: cfg.ID, VariantID: variant, UserID: fmt.Sprintf("u%d", i),
			Metrics: map[string]float64{"quality": base + jitter},
		})
		require.NoError(t, err)
	}

	final, err := f.GetTest(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, string(VerdictConclusive), final.StopReason)

	analysis, err := f.AnalyzeTest(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, VerdictConclusive, analysis.Verdict)
	for _, va := range analysis.Variants {
		if va.VariantID != "treatment" {
			continue
		}
		ma := va.Metrics["quality"]
		assert.True(t, ma.Significant)
		assert.Greater(t, ma.ImprovementPct, 50.0)
		assert.Less(t, ma.PValue, 0.01)
	}
}

func TestRecordTestResult_AutoStopsInconclusive(t *testing.T) {
	f := newTestFramework(t)
	ctx := context.Background()
	cfg := startedTest(t, f, baseConfig())

	// Seed 999 indistinguishable results directly, then record one more
	// through the framework to trigger the auto-stop evaluation.
	st := f.store
	for i := 0; i < 999; i++ {
		variant := "control"
		if i%2 == 1 {
			variant = "treatment"
		}
		raw, err := json.Marshal(Result{
			TestID: cfg.ID, VariantID: variant, UserID: fmt.Sprintf("u%d", i),
			Timestamp: time.Now(),
			Metrics:   map[string]float64{"quality": 70 + float64(i%3)},
		})
		require.NoError(t, err)
		require.NoError(t, st.Append(context.Background(), storage.NSResults, cfg.ID, raw, 0))
	}

	err := f.RecordTestResult(ctx, Result{
		TestID: cfg.ID, VariantID: "control", UserID: "u-last",
		Metrics: map[string]float64{"quality": 71},
	})
	require.NoError(t, err)

	final, err := f.GetTest(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, string(VerdictInconclusive), final.StopReason)
}
