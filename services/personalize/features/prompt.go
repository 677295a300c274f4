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
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// EmbeddingDim is the fixed length of the keyword-hash pseudo-embedding.
const EmbeddingDim = 16

// maxKeywords caps the keywords extracted from one prompt.
const maxKeywords = 10

// promptComplexityV1 weights. Each component is capped at 1 before
// weighting; the weights sum to 1 so complexity stays in [0, 1].
const (
	complexityWeightLength      = 0.20 // min(len/400, 1)
	complexityWeightPunctuation = 0.15 // min(punct/len * 20, 1)
	complexityWeightModifiers   = 0.25 // min(modifierWords/8, 1)
	complexityWeightTechnical   = 0.25 // min(technicalWords/6, 1)
	complexityWeightRequirement = 0.15 // 1 if explicit requirement present
)

// PromptAnalysis is the full heuristic analysis of one prompt.
type PromptAnalysis struct {
	Keywords    []string `json:"keywords"`
	Complexity  float64  `json:"complexity"`
	Sentiment   float64  `json:"sentiment"`
	Creativity  float64  `json:"creativity"`
	Specificity float64  `json:"specificity"`

	// Category is a coarse content bucket: "portrait", "landscape",
	// "abstract", "object", or "scene".
	Category string `json:"category"`

	// Style is the dominant style modifier, or "" when none found.
	Style string `json:"style"`

	// Subjects are the leading non-modifier keywords.
	Subjects []string `json:"subjects"`
}

// AnalyzePrompt runs the versioned heuristic scoring function
// (ScoringVersion) over a prompt.
func AnalyzePrompt(prompt string) PromptAnalysis {
	tokens := tokenize(prompt)
	keywords := extractKeywords(tokens)

	return PromptAnalysis{
		Keywords:    keywords,
		Complexity:  promptComplexity(prompt, tokens),
		Sentiment:   sentimentScore(tokens),
		Creativity:  creativityScore(tokens),
		Specificity: specificityScore(tokens),
		Category:    categorize(tokens),
		Style:       dominantStyle(tokens),
		Subjects:    subjects(keywords),
	}
}

// tokenize lowercases and splits on non-letter, non-digit runes.
func tokenize(prompt string) []string {
	return strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractKeywords filters stop words and short tokens, dedupes preserving
// order, and caps the result at maxKeywords.
func extractKeywords(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, maxKeywords)

	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// promptComplexity computes the fixed weighted sum documented on the
// complexityWeight* constants.
func promptComplexity(prompt string, tokens []string) float64 {
	if len(prompt) == 0 {
		return 0
	}

	lengthScore := math.Min(float64(len(prompt))/400, 1)

	punct := 0
	for _, r := range prompt {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	punctScore := math.Min(float64(punct)/float64(len(prompt))*20, 1)

	modifiers := countIn(tokens, modifierWords)
	modifierScore := math.Min(float64(modifiers)/8, 1)

	technical := countIn(tokens, technicalWords)
	technicalScore := math.Min(float64(technical)/6, 1)

	requirement := 0.0
	if countIn(tokens, requirementWords) > 0 || strings.ContainsAny(prompt, "0123456789") {
		requirement = 1
	}

	return complexityWeightLength*lengthScore +
		complexityWeightPunctuation*punctScore +
		complexityWeightModifiers*modifierScore +
		complexityWeightTechnical*technicalScore +
		complexityWeightRequirement*requirement
}

// pseudoEmbedding feature-hashes keywords into a fixed-length vector:
// each keyword lands in bucket hash%dim with a sign bit from the hash,
// then the vector is L2 normalized. Not a learned embedding; stable
// across platforms because xxhash is explicitly specified.
func pseudoEmbedding(keywords []string) []float64 {
	v := make([]float64, EmbeddingDim)
	for _, kw := range keywords {
		h := xxhash.Sum64String(kw)
		idx := int(h % EmbeddingDim)
		if (h>>32)&1 == 0 {
			v[idx]++
		} else {
			v[idx]--
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// sentimentScore returns (pos-neg)/(pos+neg) in [-1, 1], 0 when the
// prompt hits neither lexicon.
func sentimentScore(tokens []string) float64 {
	pos := countIn(tokens, positiveWords)
	neg := countIn(tokens, negativeWords)
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// creativityScore returns min(hits/4, 1) over the creativity lexicon.
func creativityScore(tokens []string) float64 {
	return math.Min(float64(countIn(tokens, creativityWords))/4, 1)
}

// specificityScore counts concrete markers (lexicon hits plus numeric
// tokens) and returns min(markers/6, 1).
func specificityScore(tokens []string) float64 {
	markers := countIn(tokens, specificityWords)
	for _, tok := range tokens {
		if tok != "" && strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			markers++
		}
	}
	return math.Min(float64(markers)/6, 1)
}

var categoryMarkers = map[string]string{
	"portrait": "portrait", "face": "portrait", "person": "portrait",
	"man": "portrait", "woman": "portrait", "selfie": "portrait",
	"landscape": "landscape", "mountain": "landscape", "forest": "landscape",
	"ocean": "landscape", "sunset": "landscape", "skyline": "landscape",
	"abstract": "abstract", "pattern": "abstract", "geometric": "abstract",
	"logo": "object", "icon": "object", "product": "object",
}

// categorize picks the first matching coarse category, defaulting to
// "scene".
func categorize(tokens []string) string {
	for _, tok := range tokens {
		if cat, ok := categoryMarkers[tok]; ok {
			return cat
		}
	}
	return "scene"
}

// dominantStyle returns the first modifier word in the prompt, if any.
func dominantStyle(tokens []string) string {
	for _, tok := range tokens {
		if _, ok := modifierWords[tok]; ok {
			return tok
		}
	}
	return ""
}

// subjects returns the leading keywords that are not style modifiers.
func subjects(keywords []string) []string {
	out := make([]string, 0, 3)
	for _, kw := range keywords {
		if _, mod := modifierWords[kw]; mod {
			continue
		}
		out = append(out, kw)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// countIn counts tokens present in the given lexicon.
func countIn(tokens []string, lexicon map[string]struct{}) int {
	n := 0
	for _, tok := range tokens {
		if _, ok := lexicon[tok]; ok {
			n++
		}
	}
	return n
}
