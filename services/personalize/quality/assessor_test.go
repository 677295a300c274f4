// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quality

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
)

// encodePNG renders a test image to bytes.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

// noisyImage builds an image with per-pixel random luminance.
func noisyImage(w, h int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// flatImage builds a uniform mid-gray image.
func flatImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{140, 140, 140, 255})
		}
	}
	return img
}

func inRange(t *testing.T, name string, v, lo, hi float64) {
	t.Helper()
	if v < lo || v > hi {
		t.Errorf("%s = %f, want in [%f, %f]", name, v, lo, hi)
	}
}

func TestAssess_TotalOnUndecodableInput(t *testing.T) {
	a := NewAssessor()

	cases := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			m := a.Assess(context.Background(), Request{
				GenerationID: "g1", ToolID: "sketch", Prompt: "a cat", ImageData: data,
			})

			if !m.Degraded {
				t.Error("expected degraded metric set")
			}
			if m.OverallScore != 50 || m.Category != "fair" {
				t.Errorf("neutral defaults wrong: score=%f category=%s", m.OverallScore, m.Category)
			}
			if m.Sharpness != 0.5 || m.PromptAlignment != 0.5 {
				t.Errorf("neutral sub-metrics wrong: %+v", m)
			}
		})
	}
}

func TestAssess_ValidImageInRange(t *testing.T) {
	a := NewAssessor(WithToolProfiles(map[string]ToolProfile{
		"sketch": {ExpectedKeywords: []string{"cat", "dog"}, AestheticBaseline: 0.7},
	}))

	m := a.Assess(context.Background(), Request{
		GenerationID: "g1",
		ToolID:       "sketch",
		Prompt:       "a cat on a hill",
		ImageData:    encodePNG(t, noisyImage(128, 128, 42)),
	})

	if m.Degraded {
		t.Fatal("valid image should not degrade")
	}
	inRange(t, "overall", m.OverallScore, 0, 100)
	inRange(t, "technical", m.TechnicalScore, 0, 1)
	inRange(t, "content", m.ContentScore, 0, 1)
	for name, v := range map[string]float64{
		"sharpness": m.Sharpness, "contrast": m.Contrast,
		"brightness": m.Brightness, "color_balance": m.ColorBalance,
		"noise": m.Noise, "resolution": m.Resolution,
		"alignment": m.PromptAlignment, "completeness": m.Completeness,
		"creativity": m.Creativity, "aesthetics": m.Aesthetics,
		"coherence": m.Coherence,
	} {
		inRange(t, name, v, 0, 1)
	}
	switch m.Category {
	case "excellent", "good", "fair", "poor":
	default:
		t.Errorf("invalid category %q", m.Category)
	}
}

func TestAssess_SharpVsFlat(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	sharp := a.Assess(ctx, Request{ToolID: "t", ImageData: encodePNG(t, noisyImage(64, 64, 7))})
	flat := a.Assess(ctx, Request{ToolID: "t", ImageData: encodePNG(t, flatImage(64, 64))})

	if sharp.Sharpness <= flat.Sharpness {
		t.Errorf("noisy image sharpness (%f) should exceed flat image (%f)",
			sharp.Sharpness, flat.Sharpness)
	}
	if sharp.Noise >= flat.Noise {
		t.Errorf("flat image noise score (%f) should exceed noisy image (%f)",
			flat.Noise, sharp.Noise)
	}
	if sharp.Contrast <= flat.Contrast {
		t.Errorf("noisy image contrast (%f) should exceed flat image (%f)",
			sharp.Contrast, flat.Contrast)
	}
}

func TestAssess_PromptAlignmentUsesToolProfile(t *testing.T) {
	a := NewAssessor(WithToolProfiles(map[string]ToolProfile{
		"portrait-pro": {ExpectedKeywords: []string{"portrait", "face", "woman", "man"}},
	}))
	ctx := context.Background()
	img := encodePNG(t, flatImage(32, 32))

	aligned := a.Assess(ctx, Request{ToolID: "portrait-pro", Prompt: "portrait of a woman", ImageData: img})
	misaligned := a.Assess(ctx, Request{ToolID: "portrait-pro", Prompt: "mountain landscape sunset", ImageData: img})

	if aligned.PromptAlignment <= misaligned.PromptAlignment {
		t.Errorf("aligned prompt (%f) should outscore misaligned (%f)",
			aligned.PromptAlignment, misaligned.PromptAlignment)
	}
}

func TestAssess_SuggestionsTriggerOnThresholds(t *testing.T) {
	a := NewAssessor()

	// Flat image: very low sharpness and contrast.
	m := a.Assess(context.Background(), Request{
		ToolID:    "t",
		ImageData: encodePNG(t, flatImage(32, 32)),
	})

	if len(m.Suggestions) == 0 {
		t.Error("flat low-res image should trigger suggestions")
	}
}

func TestReport_RollingStatsBounded(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()
	img := encodePNG(t, flatImage(16, 16))

	for i := 0; i < toolStatsCap+20; i++ {
		a.Assess(ctx, Request{ToolID: "t", ImageData: img})
	}

	report := a.Report("t")
	if report.Samples != toolStatsCap {
		t.Errorf("samples = %d, want capped at %d", report.Samples, toolStatsCap)
	}
	if report.Mean <= 0 {
		t.Errorf("mean should be positive, got %f", report.Mean)
	}

	empty := a.Report("never-used")
	if empty.Samples != 0 {
		t.Errorf("unknown tool should report 0 samples, got %d", empty.Samples)
	}
}
