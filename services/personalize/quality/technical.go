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
	"image"
	"math"
)

// sampleGrid is the side length of the downsampled luminance grid used
// for the pixel statistics. Keeps technical assessment O(1) in image
// size.
const sampleGrid = 64

// idealBrightness is the target mean luminance.
const idealBrightness = 0.55

// technicalMetrics holds the technical-side sub-metrics.
type technicalMetrics struct {
	sharpness    float64
	contrast     float64
	brightness   float64
	colorBalance float64
	noise        float64
	resolution   float64
}

// assessTechnical computes pixel-statistics metrics on a downsampled
// luminance grid.
//
// # Description
//
//   - sharpness: mean local gradient magnitude, scaled.
//   - contrast: luminance standard deviation, scaled.
//   - brightness: closeness of mean luminance to idealBrightness.
//   - colorBalance: 1 minus the spread of the RGB channel means.
//   - noise: inverse of the mean 4-neighbor Laplacian response, so a
//     clean image scores near 1.
//   - resolution: tier by pixel count.
func assessTechnical(img image.Image) technicalMetrics {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return technicalMetrics{
			sharpness: 0.5, contrast: 0.5, brightness: 0.5,
			colorBalance: 0.5, noise: 0.5, resolution: 0.4,
		}
	}

	gw, gh := sampleGrid, sampleGrid
	if w < gw {
		gw = w
	}
	if h < gh {
		gh = h
	}

	lum := make([][]float64, gh)
	var sumR, sumG, sumB float64
	for gy := 0; gy < gh; gy++ {
		lum[gy] = make([]float64, gw)
		for gx := 0; gx < gw; gx++ {
			px := bounds.Min.X + gx*w/gw
			py := bounds.Min.Y + gy*h/gh
			r, g, b, _ := img.At(px, py).RGBA()
			rf := float64(r) / 0xffff
			gf := float64(g) / 0xffff
			bf := float64(b) / 0xffff
			sumR += rf
			sumG += gf
			sumB += bf
			// Rec. 601 luma.
			lum[gy][gx] = 0.299*rf + 0.587*gf + 0.114*bf
		}
	}
	n := float64(gw * gh)

	var mean float64
	for _, row := range lum {
		for _, v := range row {
			mean += v
		}
	}
	mean /= n

	var variance float64
	for _, row := range lum {
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
	}
	variance /= n
	stddev := math.Sqrt(variance)

	var gradSum, lapSum float64
	var gradCount, lapCount int
	for y := 0; y < gh; y++ {
		for x := 0; x < gw; x++ {
			if x+1 < gw {
				gradSum += math.Abs(lum[y][x+1] - lum[y][x])
				gradCount++
			}
			if y+1 < gh {
				gradSum += math.Abs(lum[y+1][x] - lum[y][x])
				gradCount++
			}
			if x > 0 && x+1 < gw && y > 0 && y+1 < gh {
				lap := lum[y][x-1] + lum[y][x+1] + lum[y-1][x] + lum[y+1][x] - 4*lum[y][x]
				lapSum += math.Abs(lap)
				lapCount++
			}
		}
	}

	t := technicalMetrics{}

	if gradCount > 0 {
		// Typical mean gradients for a sharp image on this grid sit
		// around 0.1; scale so they land near 1.
		t.sharpness = clamp01(gradSum / float64(gradCount) * 10)
	}
	t.contrast = clamp01(stddev * 4)
	t.brightness = clamp01(1 - math.Abs(mean-idealBrightness)/idealBrightness)

	meanR, meanG, meanB := sumR/n, sumG/n, sumB/n
	maxC := math.Max(meanR, math.Max(meanG, meanB))
	minC := math.Min(meanR, math.Min(meanG, meanB))
	t.colorBalance = clamp01(1 - (maxC - minC))

	if lapCount > 0 {
		t.noise = clamp01(1 - lapSum/float64(lapCount)*5)
	} else {
		t.noise = 0.5
	}

	t.resolution = resolutionTier(w, h)
	return t
}

// resolutionTier buckets pixel count into a [0, 1] score.
func resolutionTier(w, h int) float64 {
	pixels := w * h
	switch {
	case pixels >= 1920*1080:
		return 1.0
	case pixels >= 1280*720:
		return 0.8
	case pixels >= 640*480:
		return 0.6
	default:
		return 0.4
	}
}
