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

import (
	"math"
	"testing"
)

func TestAnalyzePrompt_EmptyPrompt(t *testing.T) {
	a := AnalyzePrompt("")

	if a.Complexity != 0 {
		t.Errorf("empty prompt complexity = %f, want 0", a.Complexity)
	}
	if len(a.Keywords) != 0 {
		t.Errorf("empty prompt keywords = %v", a.Keywords)
	}
	if a.Category != "scene" {
		t.Errorf("default category = %q, want scene", a.Category)
	}
}

func TestAnalyzePrompt_ComplexityOrdering(t *testing.T) {
	simple := AnalyzePrompt("a cat")
	detailed := AnalyzePrompt(
		"a detailed, photorealistic portrait with dramatic volumetric lighting, " +
			"sharp bokeh, exactly 2 subjects, intricate composition, hdr, 8k resolution")

	if detailed.Complexity <= simple.Complexity {
		t.Errorf("complex prompt (%f) should outscore simple prompt (%f)",
			detailed.Complexity, simple.Complexity)
	}
	if detailed.Complexity > 1 {
		t.Errorf("complexity must stay in [0,1], got %f", detailed.Complexity)
	}
}

func TestAnalyzePrompt_KeywordsFilterStopWords(t *testing.T) {
	a := AnalyzePrompt("please make a picture of the mountain and the ocean")

	for _, kw := range a.Keywords {
		if _, stop := stopWords[kw]; stop {
			t.Errorf("stop word %q leaked into keywords %v", kw, a.Keywords)
		}
	}
	found := false
	for _, kw := range a.Keywords {
		if kw == "mountain" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mountain in keywords, got %v", a.Keywords)
	}
}

func TestAnalyzePrompt_SentimentSigns(t *testing.T) {
	pos := AnalyzePrompt("a beautiful serene peaceful lake")
	neg := AnalyzePrompt("a gloomy haunted sinister ruin")
	neutral := AnalyzePrompt("a wooden table")

	if pos.Sentiment <= 0 {
		t.Errorf("positive prompt sentiment = %f", pos.Sentiment)
	}
	if neg.Sentiment >= 0 {
		t.Errorf("negative prompt sentiment = %f", neg.Sentiment)
	}
	if neutral.Sentiment != 0 {
		t.Errorf("neutral prompt sentiment = %f, want 0", neutral.Sentiment)
	}
}

func TestAnalyzePrompt_Categories(t *testing.T) {
	cases := map[string]string{
		"portrait of a woman":        "portrait",
		"mountain landscape at dawn": "landscape",
		"abstract geometric pattern": "abstract",
		"minimal logo for a bakery":  "object",
		"a busy market street":       "scene",
	}
	for prompt, want := range cases {
		if got := AnalyzePrompt(prompt).Category; got != want {
			t.Errorf("category(%q) = %q, want %q", prompt, got, want)
		}
	}
}

func TestPseudoEmbedding_FixedLengthAndDeterministic(t *testing.T) {
	kws := []string{"cat", "space", "nebula"}

	e1 := pseudoEmbedding(kws)
	e2 := pseudoEmbedding(kws)

	if len(e1) != EmbeddingDim {
		t.Fatalf("embedding length = %d, want %d", len(e1), EmbeddingDim)
	}
	for i := range e1 {
		if e1[i] != e2[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}

	// Unit norm for non-empty keyword sets.
	var norm float64
	for _, x := range e1 {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestPseudoEmbedding_EmptyKeywords(t *testing.T) {
	e := pseudoEmbedding(nil)
	if len(e) != EmbeddingDim {
		t.Fatalf("embedding length = %d, want %d", len(e), EmbeddingDim)
	}
	for i, x := range e {
		if x != 0 {
			t.Errorf("empty embedding should be all zero, e[%d]=%f", i, x)
		}
	}
}
