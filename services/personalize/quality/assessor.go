// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quality computes technical and content quality metrics for one
// generated artifact.
//
// Assessment is total: any undecodable or timed-out input yields the
// documented neutral-default metric set instead of an error. Artifact
// decoding is the only potentially slow step and runs cancelable and
// timeout-bounded; nothing here touches the network.
package quality

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianStudio/services/personalize/bounded"
	"github.com/AleutianAI/AleutianStudio/services/personalize/features"
)

// Overall weights: technical vs content.
const (
	weightTechnical = 0.40
	weightContent   = 0.60
)

// Technical sub-weights (sum to 1).
const (
	techWeightSharpness    = 0.25
	techWeightContrast     = 0.20
	techWeightBrightness   = 0.15
	techWeightColorBalance = 0.15
	techWeightNoise        = 0.15
	techWeightResolution   = 0.10
)

// Content sub-weights (sum to 1).
const (
	contentWeightAlignment    = 0.30
	contentWeightCompleteness = 0.20
	contentWeightCreativity   = 0.20
	contentWeightAesthetics   = 0.20
	contentWeightCoherence    = 0.10
)

// Category thresholds on the overall 0-100 score.
const (
	thresholdExcellent = 85
	thresholdGood      = 70
	thresholdFair      = 50
)

// toolStatsCap bounds the per-tool rolling score history.
const toolStatsCap = 100

// defaultDecodeTimeout bounds the artifact decode step.
const defaultDecodeTimeout = 2 * time.Second

// Request is one assessment request.
type Request struct {
	GenerationID string `json:"generation_id"`
	ToolID       string `json:"tool_id"`
	Prompt       string `json:"prompt"`

	// ImageData is the opaque artifact bytes from the generation
	// invocation. May be empty or undecodable; assessment still
	// returns a result.
	ImageData []byte `json:"-"`
}

// Metrics is the full quality metric set for one artifact.
//
// All sub-metrics are in [0, 1]; OverallScore is in [0, 100].
type Metrics struct {
	// --- Technical ---
	Sharpness    float64 `json:"sharpness"`
	Contrast     float64 `json:"contrast"`
	Brightness   float64 `json:"brightness"`
	ColorBalance float64 `json:"color_balance"`
	Noise        float64 `json:"noise"`
	Resolution   float64 `json:"resolution"`

	// --- Content ---
	PromptAlignment float64 `json:"prompt_alignment"`
	Completeness    float64 `json:"completeness"`
	Creativity      float64 `json:"creativity"`
	Aesthetics      float64 `json:"aesthetics"`
	Coherence       float64 `json:"coherence"`

	TechnicalScore float64 `json:"technical_score"`
	ContentScore   float64 `json:"content_score"`

	// OverallScore = (technical*0.40 + content*0.60) * 100.
	OverallScore float64 `json:"overall_score"`

	// Category buckets OverallScore: excellent >= 85, good >= 70,
	// fair >= 50, poor below.
	Category string `json:"category"`

	// Suggestions are threshold-triggered improvement hints.
	Suggestions []string `json:"suggestions,omitempty"`

	// Degraded is set when the neutral-default metric set was
	// substituted for a failed decode or compute.
	Degraded bool `json:"degraded,omitempty"`
}

// ToolReport summarizes the rolling per-tool assessment history.
type ToolReport struct {
	ToolID  string  `json:"tool_id"`
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ToolProfile describes a tool's expected output for content scoring.
type ToolProfile struct {
	// ExpectedKeywords is the keyword vocabulary this tool's outputs
	// are expected to cover.
	ExpectedKeywords []string

	// AestheticBaseline is the tool's aesthetics lookup value in [0, 1].
	AestheticBaseline float64
}

// Assessor computes quality metrics for generated artifacts.
//
// # Thread Safety
//
// Safe for concurrent use.
type Assessor struct {
	logger        *slog.Logger
	decodeTimeout time.Duration
	profiles      map[string]ToolProfile

	statsMu   sync.RWMutex
	toolStats map[string]*bounded.List[float64]
}

// AssessorOption configures an Assessor.
type AssessorOption func(*Assessor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AssessorOption {
	return func(a *Assessor) { a.logger = logger }
}

// WithDecodeTimeout bounds the artifact decode step.
func WithDecodeTimeout(d time.Duration) AssessorOption {
	return func(a *Assessor) { a.decodeTimeout = d }
}

// WithToolProfiles sets the per-tool content-scoring profiles.
func WithToolProfiles(profiles map[string]ToolProfile) AssessorOption {
	return func(a *Assessor) { a.profiles = profiles }
}

// NewAssessor creates an Assessor.
func NewAssessor(opts ...AssessorOption) *Assessor {
	a := &Assessor{
		logger:        slog.Default(),
		decodeTimeout: defaultDecodeTimeout,
		profiles:      map[string]ToolProfile{},
		toolStats:     make(map[string]*bounded.List[float64]),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess computes the full metric set for one artifact.
//
// # Description
//
// Decodes the artifact under a timeout, computes technical metrics from
// the pixels and content metrics from the prompt and tool profile, and
// folds the overall score into the tool's rolling statistics. Total by
// contract: decode failure, timeout, or cancellation substitutes the
// neutral-default metric set (all sub-metrics 0.5, overall 50, category
// "fair") and logs the failure once.
func (a *Assessor) Assess(ctx context.Context, req Request) Metrics {
	img, err := a.decode(ctx, req.ImageData)
	if err != nil {
		a.logger.Warn("artifact decode failed, using neutral metrics",
			"generation_id", req.GenerationID,
			"tool_id", req.ToolID,
			"error", err)
		m := NeutralMetrics()
		a.recordToolScore(req.ToolID, m.OverallScore)
		return m
	}

	tech := assessTechnical(img)
	content := a.assessContent(req)

	m := Metrics{
		Sharpness:    tech.sharpness,
		Contrast:     tech.contrast,
		Brightness:   tech.brightness,
		ColorBalance: tech.colorBalance,
		Noise:        tech.noise,
		Resolution:   tech.resolution,

		PromptAlignment: content.alignment,
		Completeness:    content.completeness,
		Creativity:      content.creativity,
		Aesthetics:      content.aesthetics,
		Coherence:       content.coherence,
	}

	m.TechnicalScore = techWeightSharpness*m.Sharpness +
		techWeightContrast*m.Contrast +
		techWeightBrightness*m.Brightness +
		techWeightColorBalance*m.ColorBalance +
		techWeightNoise*m.Noise +
		techWeightResolution*m.Resolution

	m.ContentScore = contentWeightAlignment*m.PromptAlignment +
		contentWeightCompleteness*m.Completeness +
		contentWeightCreativity*m.Creativity +
		contentWeightAesthetics*m.Aesthetics +
		contentWeightCoherence*m.Coherence

	m.OverallScore = (weightTechnical*m.TechnicalScore + weightContent*m.ContentScore) * 100
	m.Category = categorize(m.OverallScore)
	m.Suggestions = suggestions(m)

	a.recordToolScore(req.ToolID, m.OverallScore)
	return m
}

// NeutralMetrics is the documented fallback metric set for inputs that
// cannot be assessed.
func NeutralMetrics() Metrics {
	return Metrics{
		Sharpness: 0.5, Contrast: 0.5, Brightness: 0.5,
		ColorBalance: 0.5, Noise: 0.5, Resolution: 0.5,
		PromptAlignment: 0.5, Completeness: 0.5, Creativity: 0.5,
		Aesthetics: 0.5, Coherence: 0.5,
		TechnicalScore: 0.5, ContentScore: 0.5,
		OverallScore: 50, Category: "fair",
		Degraded: true,
	}
}

// Report returns the rolling statistics for one tool.
func (a *Assessor) Report(toolID string) ToolReport {
	a.statsMu.RLock()
	list, ok := a.toolStats[toolID]
	a.statsMu.RUnlock()

	report := ToolReport{ToolID: toolID}
	if !ok {
		return report
	}

	scores := list.Snapshot()
	report.Samples = len(scores)
	if len(scores) == 0 {
		return report
	}

	report.Min = scores[0]
	report.Max = scores[0]
	sum := 0.0
	for _, s := range scores {
		sum += s
		if s < report.Min {
			report.Min = s
		}
		if s > report.Max {
			report.Max = s
		}
	}
	report.Mean = sum / float64(len(scores))
	return report
}

// decode runs the artifact decode as a cancelable, timeout-bounded step.
func (a *Assessor) decode(ctx context.Context, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty artifact")
	}

	ctx, cancel := context.WithTimeout(ctx, a.decodeTimeout)
	defer cancel()

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, _, err := image.Decode(bytes.NewReader(data))
		ch <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("decode: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("decode: %w", r.err)
		}
		return r.img, nil
	}
}

// recordToolScore appends one overall score to the tool's bounded stats.
func (a *Assessor) recordToolScore(toolID string, score float64) {
	if toolID == "" {
		return
	}

	a.statsMu.RLock()
	list, ok := a.toolStats[toolID]
	a.statsMu.RUnlock()
	if !ok {
		a.statsMu.Lock()
		list, ok = a.toolStats[toolID]
		if !ok {
			list = bounded.NewList[float64](toolStatsCap)
			a.toolStats[toolID] = list
		}
		a.statsMu.Unlock()
	}
	list.Append(score)
}

// contentMetrics holds the content-side sub-metrics.
type contentMetrics struct {
	alignment    float64
	completeness float64
	creativity   float64
	aesthetics   float64
	coherence    float64
}

// assessContent scores the content side from the prompt and tool profile.
func (a *Assessor) assessContent(req Request) contentMetrics {
	analysis := features.AnalyzePrompt(req.Prompt)
	profile, hasProfile := a.profiles[req.ToolID]

	c := contentMetrics{
		alignment:    0.5,
		completeness: 0.5,
		creativity:   analysis.Creativity*0.5 + 0.5,
		aesthetics:   0.5,
		coherence:    0.5,
	}

	if hasProfile {
		c.aesthetics = profile.AestheticBaseline
	}

	if len(analysis.Keywords) > 0 && hasProfile && len(profile.ExpectedKeywords) > 0 {
		expected := make(map[string]struct{}, len(profile.ExpectedKeywords))
		for _, kw := range profile.ExpectedKeywords {
			expected[kw] = struct{}{}
		}
		overlap := 0
		for _, kw := range analysis.Keywords {
			if _, ok := expected[kw]; ok {
				overlap++
			}
		}
		c.alignment = float64(overlap) / float64(len(analysis.Keywords))
		// Completeness rewards covering the prompt's subjects while
		// giving partial credit for any overlap at all.
		c.completeness = clamp01(0.3 + 0.7*c.alignment)
	}

	// Coherence tracks how self-consistent the prompt is: highly
	// specific prompts with mixed sentiment read as less coherent.
	c.coherence = clamp01(0.7 - 0.2*abs(analysis.Sentiment) + 0.3*analysis.Specificity)

	return c
}

func categorize(overall float64) string {
	switch {
	case overall >= thresholdExcellent:
		return "excellent"
	case overall >= thresholdGood:
		return "good"
	case overall >= thresholdFair:
		return "fair"
	default:
		return "poor"
	}
}

// suggestions emits threshold-triggered improvement hints.
func suggestions(m Metrics) []string {
	var out []string
	if m.Sharpness < 0.4 {
		out = append(out, "result is soft; try a higher detail setting or an upscale pass")
	}
	if m.Contrast < 0.4 {
		out = append(out, "low contrast; add lighting or tonal-range cues to the prompt")
	}
	if m.Brightness < 0.4 {
		out = append(out, "exposure is far from the ideal midtone; adjust brightness cues")
	}
	if m.Noise < 0.4 {
		out = append(out, "high noise response; try a tool with stronger denoising")
	}
	if m.PromptAlignment < 0.4 {
		out = append(out, "output may not match the prompt; restate the main subjects explicitly")
	}
	if m.Resolution < 0.5 {
		out = append(out, "low output resolution; request a larger size or upscale")
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
