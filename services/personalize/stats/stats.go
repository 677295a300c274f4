// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats implements the small statistical toolkit shared by the
// feature store, the experiment framework, and the drift monitor: running
// moments, normal-approximation hypothesis tests, confidence intervals,
// Pearson correlation, and the two-sample Kolmogorov-Smirnov statistic.
//
// Everything here is closed-form and allocation-light. None of it is a
// trained model; the functions are versioned, explicit formulas that form
// part of the tested contract.
package stats

import (
	"math"
	"sort"
)

// Moments accumulates mean and variance incrementally (Welford's method).
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type Moments struct {
	n    int
	mean float64
	m2   float64
}

// Add folds one observation into the accumulator.
func (m *Moments) Add(x float64) {
	m.n++
	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.m2 += delta * (x - m.mean)
}

// N returns the number of observations.
func (m *Moments) N() int { return m.n }

// Mean returns the running mean, or 0 with no observations.
func (m *Moments) Mean() float64 { return m.mean }

// Variance returns the sample variance (n-1 denominator).
func (m *Moments) Variance() float64 {
	if m.n < 2 {
		return 0
	}
	return m.m2 / float64(m.n-1)
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the sample variance of xs (n-1 denominator).
func Variance(xs []float64) float64 {
	var m Moments
	for _, x := range xs {
		m.Add(x)
	}
	return m.Variance()
}

// Pearson returns the Pearson correlation coefficient between xs and ys.
//
// # Outputs
//
//   - float64: Correlation in [-1, 1]. Returns 0 when either input is
//     empty, lengths differ, or either side has zero variance.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}

	mx := Mean(xs)
	my := Mean(ys)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// NormalCDF returns P(Z <= z) for a standard normal Z.
func NormalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// TwoSidedPValue converts a z (or large-sample t) statistic into a
// two-sided p-value under the normal approximation.
func TwoSidedPValue(z float64) float64 {
	return 2 * (1 - NormalCDF(math.Abs(z)))
}

// PooledT computes the pooled-variance two-sample t statistic.
//
// # Description
//
// Classic equal-variance two-sample t:
//
//	sp2 = ((n1-1)*v1 + (n2-1)*v2) / (n1+n2-2)
//	t   = (m1 - m2) / sqrt(sp2 * (1/n1 + 1/n2))
//
// # Outputs
//
//   - float64: The t statistic. Returns 0 when either sample has fewer
//     than two observations or the pooled variance is zero.
func PooledT(m1, v1 float64, n1 int, m2, v2 float64, n2 int) float64 {
	if n1 < 2 || n2 < 2 {
		return 0
	}
	sp2 := (float64(n1-1)*v1 + float64(n2-1)*v2) / float64(n1+n2-2)
	if sp2 <= 0 {
		return 0
	}
	se := math.Sqrt(sp2 * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0
	}
	return (m1 - m2) / se
}

// ConfidenceInterval95 returns the normal-approximation 95% confidence
// interval for a sample mean.
func ConfidenceInterval95(mean, variance float64, n int) (lo, hi float64) {
	if n < 2 {
		return mean, mean
	}
	// z for 95% two-sided
	const z = 1.959964
	half := z * math.Sqrt(variance/float64(n))
	return mean - half, mean + half
}

// KolmogorovSmirnov computes the two-sample KS statistic and its
// asymptotic p-value.
//
// # Description
//
// The statistic is the maximum absolute distance between the two empirical
// CDFs, computed by merge-walking both sorted samples. The p-value uses
// the standard asymptotic series
//
//	Q(lambda) = 2 * sum_{j>=1} (-1)^{j-1} exp(-2 j^2 lambda^2)
//
// with the Stephens small-sample correction on lambda.
//
// # Outputs
//
//   - stat: KS statistic in [0, 1]. 0 when either sample is empty.
//   - p: Approximate p-value in [0, 1]. 1 when either sample is empty.
func KolmogorovSmirnov(a, b []float64) (stat, p float64) {
	n1, n2 := len(a), len(b)
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}

	as := append([]float64(nil), a...)
	bs := append([]float64(nil), b...)
	sort.Float64s(as)
	sort.Float64s(bs)

	var i, j int
	var d float64
	for i < n1 && j < n2 {
		x := as[i]
		y := bs[j]
		if x <= y {
			i++
		}
		if y <= x {
			j++
		}
		diff := math.Abs(float64(i)/float64(n1) - float64(j)/float64(n2))
		if diff > d {
			d = diff
		}
	}

	en := math.Sqrt(float64(n1) * float64(n2) / float64(n1+n2))
	lambda := (en + 0.12 + 0.11/en) * d
	return d, ksProbability(lambda)
}

// ksProbability evaluates the KS asymptotic survival function Q(lambda).
func ksProbability(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j*j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	return math.Min(1, math.Max(0, p))
}

// Histogram bins xs into the given number of equal-width bins spanning
// [min(xs), max(xs)].
//
// # Outputs
//
//   - []int: Counts per bin, length bins. All-zero when xs is empty. When
//     every value is identical, the single shared value lands in bin 0.
func Histogram(xs []float64, bins int) []int {
	if bins <= 0 {
		bins = 10
	}
	counts := make([]int, bins)
	if len(xs) == 0 {
		return counts
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		counts[0] = len(xs)
		return counts
	}

	for _, x := range xs {
		idx := int((x - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}
