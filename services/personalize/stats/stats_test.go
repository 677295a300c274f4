// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMoments_MatchesBatchComputation(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	var m Moments
	for _, x := range xs {
		m.Add(x)
	}

	if !almostEqual(m.Mean(), 5.0, 1e-9) {
		t.Errorf("mean = %f, want 5", m.Mean())
	}
	if !almostEqual(m.Mean(), Mean(xs), 1e-9) {
		t.Errorf("incremental mean %f != batch mean %f", m.Mean(), Mean(xs))
	}
	if !almostEqual(m.Variance(), Variance(xs), 1e-9) {
		t.Errorf("incremental variance %f != batch variance %f", m.Variance(), Variance(xs))
	}
}

func TestVariance_SmallSamples(t *testing.T) {
	if v := Variance(nil); v != 0 {
		t.Errorf("variance of empty = %f, want 0", v)
	}
	if v := Variance([]float64{3}); v != 0 {
		t.Errorf("variance of single = %f, want 0", v)
	}
}

func TestPearson_PerfectCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}

	if r := Pearson(xs, ys); !almostEqual(r, 1, 1e-9) {
		t.Errorf("expected r=1, got %f", r)
	}

	neg := []float64{10, 8, 6, 4, 2}
	if r := Pearson(xs, neg); !almostEqual(r, -1, 1e-9) {
		t.Errorf("expected r=-1, got %f", r)
	}
}

func TestPearson_Degenerateinputs(t *testing.T) {
	if r := Pearson([]float64{1, 2}, []float64{1, 2, 3}); r != 0 {
		t.Errorf("mismatched lengths should give 0, got %f", r)
	}
	if r := Pearson([]float64{5, 5, 5}, []float64{1, 2, 3}); r != 0 {
		t.Errorf("zero-variance input should give 0, got %f", r)
	}
}

func TestNormalCDF_KnownValues(t *testing.T) {
	cases := []struct {
		z    float64
		want float64
	}{
		{0, 0.5},
		{1.959964, 0.975},
		{-1.959964, 0.025},
	}
	for _, tc := range cases {
		if got := NormalCDF(tc.z); !almostEqual(got, tc.want, 1e-4) {
			t.Errorf("NormalCDF(%f) = %f, want %f", tc.z, got, tc.want)
		}
	}
}

func TestPooledT_EqualSamplesGiveZero(t *testing.T) {
	if tt := PooledT(1.0, 0.5, 50, 1.0, 0.5, 50); tt != 0 {
		t.Errorf("identical distributions should give t=0, got %f", tt)
	}
}

func TestPooledT_SeparatedMeansAreSignificant(t *testing.T) {
	// Means 1 apart with tiny variance and decent n: strongly significant.
	tt := PooledT(2.0, 0.01, 100, 1.0, 0.01, 100)
	p := TwoSidedPValue(tt)
	if p > 0.001 {
		t.Errorf("expected tiny p-value, got %f (t=%f)", p, tt)
	}
}

func TestConfidenceInterval95_ContainsMean(t *testing.T) {
	lo, hi := ConfidenceInterval95(10, 4, 100)
	if lo >= 10 || hi <= 10 {
		t.Errorf("interval [%f, %f] should bracket the mean", lo, hi)
	}
	// half-width = 1.96 * sqrt(4/100) = 0.392
	if !almostEqual(hi-lo, 2*1.959964*0.2, 1e-3) {
		t.Errorf("unexpected interval width %f", hi-lo)
	}
}

func TestKolmogorovSmirnov_IdenticalSamples(t *testing.T) {
	xs := []float64{0.1, 0.4, 0.35, 0.8, 0.2, 0.9, 0.55}

	stat, p := KolmogorovSmirnov(xs, xs)

	if stat > 1e-9 {
		t.Errorf("identical samples should give stat ~0, got %f", stat)
	}
	if p < 0.99 {
		t.Errorf("identical samples should give p ~1, got %f", p)
	}
}

func TestKolmogorovSmirnov_DisjointSamples(t *testing.T) {
	a := make([]float64, 50)
	b := make([]float64, 50)
	for i := range a {
		a[i] = float64(i) / 50
		b[i] = 10 + float64(i)/50
	}

	stat, p := KolmogorovSmirnov(a, b)

	if !almostEqual(stat, 1, 1e-9) {
		t.Errorf("disjoint samples should give stat 1, got %f", stat)
	}
	if p > 0.001 {
		t.Errorf("disjoint samples should give tiny p, got %f", p)
	}
}

func TestKolmogorovSmirnov_EmptySample(t *testing.T) {
	stat, p := KolmogorovSmirnov(nil, []float64{1, 2})
	if stat != 0 || p != 1 {
		t.Errorf("empty sample should give (0, 1), got (%f, %f)", stat, p)
	}
}

func TestHistogram_Basic(t *testing.T) {
	xs := []float64{0, 0.15, 0.25, 0.95, 1.0}

	counts := Histogram(xs, 10)

	if len(counts) != 10 {
		t.Fatalf("expected 10 bins, got %d", len(counts))
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != len(xs) {
		t.Errorf("bin counts sum to %d, want %d", total, len(xs))
	}
	// Max value lands in the last bin, not out of range.
	if counts[9] == 0 {
		t.Error("max value should land in the last bin")
	}
}

func TestHistogram_ConstantSample(t *testing.T) {
	counts := Histogram([]float64{3, 3, 3}, 10)
	if counts[0] != 3 {
		t.Errorf("constant sample should fill bin 0, got %v", counts)
	}
}
