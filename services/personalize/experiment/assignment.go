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
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/AleutianAI/AleutianStudio/services/personalize/storage"
)

// Hash salts for the two independent bucketing decisions. Eligibility
// and assignment must not correlate, so each gets its own salt. These
// values are part of the persisted assignment contract: changing one
// reshuffles every user of every running experiment.
const (
	eligibilitySalt = "aleutian-studio/eligibility/v1"
	assignmentSalt  = "aleutian-studio/assignment/v1"
)

// eligibilityBuckets is the resolution of the audience-percentage
// bucket check.
const eligibilityBuckets = 10000

// bucketHash computes the salted 64-bit hash for one (user, test)
// decision. The separator keeps ("ab","c") and ("a","bc") distinct.
func bucketHash(salt, userID, testID string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(salt)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(userID)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(testID)
	return d.Sum64()
}

// GetUserVariant resolves the user's variant for an experiment.
//
// # Description
//
// A previously stored assignment or exclusion always wins. Otherwise
// the user is eligible when every audience criterion matches userCtx
// and their eligibility hash falls inside the audience percentage;
// ineligible users are excluded permanently for this test. Eligible
// users are mapped by a second, independently salted hash into the
// cumulative traffic-split ranges and the assignment is persisted.
//
// The mapping is a pure function of (userID, testID, config), so two
// racing first calls compute the identical variant before persisting.
//
// # Outputs
//
//   - string: The assigned variant id.
//   - error: ErrTestNotFound, ErrTestNotActive, or ErrNotEligible.
func (f *Framework) GetUserVariant(ctx context.Context, userID, testID string, userCtx map[string]string) (string, error) {
	cfg, err := f.loadConfig(ctx, testID)
	if err != nil {
		return "", err
	}

	assignKey := testID + "/" + userID

	raw, err := f.store.Get(ctx, storage.NSAssignments, assignKey)
	if err == nil {
		var a Assignment
		if err := json.Unmarshal(raw, &a); err != nil {
			return "", fmt.Errorf("decode assignment: %w", err)
		}
		return a.VariantID, nil
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return "", err
	}

	if _, err := f.store.Get(ctx, storage.NSExclusions, assignKey); err == nil {
		return "", fmt.Errorf("%w: %s", ErrNotEligible, userID)
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return "", err
	}

	if cfg.Status != StatusActive {
		return "", fmt.Errorf("%w: %s", ErrTestNotActive, testID)
	}

	if !f.eligible(cfg, userID, testID, userCtx) {
		if err := f.store.Set(ctx, storage.NSExclusions, assignKey, []byte("1")); err != nil {
			return "", fmt.Errorf("persist exclusion: %w", err)
		}
		return "", fmt.Errorf("%w: %s", ErrNotEligible, userID)
	}

	variantID := assignVariant(cfg, userID, testID)
	a := Assignment{
		TestID:     testID,
		UserID:     userID,
		VariantID:  variantID,
		AssignedAt: f.now(),
	}
	encoded, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode assignment: %w", err)
	}
	if err := f.store.Set(ctx, storage.NSAssignments, assignKey, encoded); err != nil {
		return "", fmt.Errorf("persist assignment: %w", err)
	}
	f.logger.Debug("variant assigned",
		"test_id", testID, "user_id", userID, "variant", variantID)
	return variantID, nil
}

// eligible checks audience criteria and the percentage bucket.
func (f *Framework) eligible(cfg *Config, userID, testID string, userCtx map[string]string) bool {
	for k, want := range cfg.Audience.Criteria {
		if userCtx[k] != want {
			return false
		}
	}
	bucket := bucketHash(eligibilitySalt, userID, testID) % eligibilityBuckets
	return float64(bucket) < cfg.Audience.Percentage*eligibilityBuckets
}

// assignVariant maps the assignment hash into the cumulative
// traffic-split ranges. The final variant absorbs rounding remainder
// so the mapping is total.
func assignVariant(cfg *Config, userID, testID string) string {
	h := bucketHash(assignmentSalt, userID, testID)
	u := float64(h) / float64(^uint64(0))

	var cumulative float64
	for _, v := range cfg.Variants {
		cumulative += v.Split
		if u < cumulative {
			return v.ID
		}
	}
	return cfg.Variants[len(cfg.Variants)-1].ID
}
