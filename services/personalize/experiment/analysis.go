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
	"math"

	"github.com/AleutianAI/AleutianStudio/services/personalize/stats"
	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

// AnalyzeTest computes the per-variant, per-metric statistical summary
// for an experiment.
//
// # Description
//
// For each variant and configured metric: sample count, mean, 95%
// confidence interval (normal approximation), pooled-variance
// two-sample t statistic against the designated control, two-sided
// p-value, significance at the config's level, and percent improvement
// over the control mean. Zero-sample variants carry no metric entries.
//
// The verdict is conclusive once total samples reach 100 and some
// non-control variant has a significant metric with a positive combined
// improvement, inconclusive once total samples reach 1000 with no such
// winner, and running otherwise. Works on active and archived tests.
func (f *Framework) AnalyzeTest(ctx context.Context, testID string) (*TestAnalysis, error) {
	cfg, err := f.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	samples, err := f.metricSamples(ctx, cfg)
	if err != nil {
		return nil, err
	}

	control := cfg.ControlVariant()
	controlSamples := samples[control.ID]

	analysis := &TestAnalysis{
		TestID:     testID,
		Status:     cfg.Status,
		AnalyzedAt: f.now(),
	}

	conclusiveWinner := false
	for _, v := range cfg.Variants {
		variantSamples := samples[v.ID]
		va := VariantAnalysis{
			VariantID: v.ID,
			Control:   v.ID == control.ID,
			Samples:   sampleCount(variantSamples),
		}
		analysis.TotalSamples += va.Samples

		if va.Samples > 0 {
			va.Metrics = make(map[string]MetricAnalysis, len(cfg.Metrics))
			var combined float64
			anySignificant := false
			for _, metric := range cfg.Metrics {
				ma := analyzeMetric(variantSamples[metric], controlSamples[metric],
					va.Control, cfg.SignificanceLevel)
				va.Metrics[metric] = ma
				if ma.Significant {
					anySignificant = true
					combined += ma.ImprovementPct
				}
			}
			if !va.Control && anySignificant && combined > 0 {
				conclusiveWinner = true
			}
		}
		analysis.Variants = append(analysis.Variants, va)
	}

	switch {
	case analysis.TotalSamples >= conclusiveMinSamples && conclusiveWinner:
		analysis.Verdict = VerdictConclusive
	case analysis.TotalSamples >= inconclusiveMinSamples:
		analysis.Verdict = VerdictInconclusive
	default:
		analysis.Verdict = VerdictRunning
	}
	return analysis, nil
}

// metricSamples groups recorded metric values by variant and metric.
func (f *Framework) metricSamples(ctx context.Context, cfg *Config) (map[string]map[string][]float64, error) {
	out := make(map[string]map[string][]float64, len(cfg.Variants))
	for _, v := range cfg.Variants {
		out[v.ID] = make(map[string][]float64, len(cfg.Metrics))
	}

	rawList, err := f.store.GetList(ctx, storage.NSResults, cfg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return out, nil
		}
		return nil, err
	}

	for _, raw := range rawList {
		var r Result
		if err := json.Unmarshal(raw, &r); err != nil {
			f.logger.Warn("skipping undecodable experiment result", "test_id", cfg.ID)
			continue
		}
		byMetric, ok := out[r.VariantID]
		if !ok {
			continue
		}
		for _, metric := range cfg.Metrics {
			if value, ok := r.Metrics[metric]; ok {
				byMetric[metric] = append(byMetric[metric], value)
			}
		}
	}
	return out, nil
}

// sampleCount is the largest per-metric sample size for a variant.
// Results may omit individual metrics, so counts can differ per metric.
func sampleCount(byMetric map[string][]float64) int {
	max := 0
	for _, values := range byMetric {
		if len(values) > max {
			max = len(values)
		}
	}
	return max
}

// analyzeMetric computes one metric summary for one variant.
func analyzeMetric(values, controlValues []float64, isControl bool, significanceLevel float64) MetricAnalysis {
	ma := MetricAnalysis{Samples: len(values)}
	if len(values) == 0 {
		return ma
	}

	ma.Mean = stats.Mean(values)
	variance := stats.Variance(values)
	ma.CILow, ma.CIHigh = stats.ConfidenceInterval95(ma.Mean, variance, len(values))

	if isControl || len(controlValues) == 0 {
		return ma
	}

	controlMean := stats.Mean(controlValues)
	controlVariance := stats.Variance(controlValues)
	ma.TStatistic = stats.PooledT(ma.Mean, variance, len(values),
		controlMean, controlVariance, len(controlValues))
	ma.PValue = stats.TwoSidedPValue(ma.TStatistic)
	ma.Significant = ma.PValue < significanceLevel
	if controlMean != 0 {
		ma.ImprovementPct = (ma.Mean - controlMean) / math.Abs(controlMean) * 100
	}
	return ma
}
