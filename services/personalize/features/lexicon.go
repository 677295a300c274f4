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

// ScoringVersion names the current heuristic scoring function. The
// lexicons and weights below are part of the tested contract; bump the
// version when any of them change.
const ScoringVersion = "prompt-scoring-v1"

// stopWords are filtered out of keyword extraction.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "of": {}, "for": {},
	"with": {}, "from": {}, "by": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "be": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"my": {}, "me": {}, "i": {}, "you": {}, "your": {}, "please": {},
	"make": {}, "create": {}, "generate": {}, "image": {}, "picture": {},
	"photo": {}, "some": {}, "very": {}, "like": {}, "into": {},
}

// modifierWords are style and quality modifiers counted toward prompt
// complexity.
var modifierWords = map[string]struct{}{
	"detailed": {}, "realistic": {}, "vibrant": {}, "dramatic": {},
	"soft": {}, "sharp": {}, "cinematic": {}, "minimal": {},
	"intricate": {}, "elegant": {}, "moody": {}, "bright": {},
	"dark": {}, "colorful": {}, "monochrome": {}, "vintage": {},
	"modern": {}, "abstract": {}, "surreal": {}, "photorealistic": {},
	"stylized": {}, "ornate": {}, "textured": {}, "glossy": {},
}

// technicalWords are generation-vocabulary terms counted toward prompt
// complexity.
var technicalWords = map[string]struct{}{
	"bokeh": {}, "aperture": {}, "exposure": {}, "hdr": {},
	"render": {}, "raytracing": {}, "wireframe": {}, "isometric": {},
	"depth": {}, "perspective": {}, "composition": {}, "lighting": {},
	"resolution": {}, "aspect": {}, "gradient": {}, "saturation": {},
	"contrast": {}, "shader": {}, "octane": {}, "volumetric": {},
	"macro": {}, "telephoto": {}, "panorama": {}, "fisheye": {},
}

// positiveWords and negativeWords drive the lexicon sentiment score.
var positiveWords = map[string]struct{}{
	"beautiful": {}, "happy": {}, "joyful": {}, "serene": {},
	"peaceful": {}, "lovely": {}, "wonderful": {}, "stunning": {},
	"gorgeous": {}, "delightful": {}, "warm": {}, "cheerful": {},
	"magical": {}, "dreamy": {}, "charming": {}, "playful": {},
}

var negativeWords = map[string]struct{}{
	"dark": {}, "gloomy": {}, "scary": {}, "creepy": {},
	"sad": {}, "angry": {}, "broken": {}, "ruined": {},
	"decayed": {}, "haunted": {}, "sinister": {}, "grim": {},
	"bleak": {}, "ominous": {}, "desolate": {}, "menacing": {},
}

// creativityWords signal imaginative or unconventional prompts.
var creativityWords = map[string]struct{}{
	"surreal": {}, "dreamlike": {}, "fantastical": {}, "imaginary": {},
	"whimsical": {}, "otherworldly": {}, "impossible": {}, "fusion": {},
	"hybrid": {}, "reimagined": {}, "unexpected": {}, "abstract": {},
	"psychedelic": {}, "mythical": {}, "cosmic": {}, "steampunk": {},
}

// specificityWords are concrete markers (colors, placements, counts are
// handled separately by digit detection).
var specificityWords = map[string]struct{}{
	"red": {}, "blue": {}, "green": {}, "yellow": {}, "purple": {},
	"orange": {}, "pink": {}, "black": {}, "white": {}, "gold": {},
	"silver": {}, "left": {}, "right": {}, "center": {}, "background": {},
	"foreground": {}, "wearing": {}, "holding": {}, "standing": {},
	"sitting": {}, "closeup": {}, "portrait": {}, "landscape": {},
}

// requirementWords mark explicit constraints in a prompt.
var requirementWords = map[string]struct{}{
	"must": {}, "exactly": {}, "only": {}, "without": {},
	"never": {}, "always": {}, "require": {}, "required": {},
	"ensure": {}, "no": {},
}
