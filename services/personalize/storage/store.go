// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence port for the personalization
// service and provides two implementations: an in-memory store for tests
// and a BadgerDB-backed store for production.
//
// The service only needs namespaced key-value collections with bounded
// append-and-evict lists; any backend satisfying Store suffices. There is
// no schema beyond the JSON the callers write.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound indicates the requested key does not exist in the namespace.
var ErrKeyNotFound = errors.New("key not found")

// Store is the persistence port for all personalization state.
//
// # Description
//
// Keys are namespaced (user features, tool usage, experiment assignments,
// and so on each get their own namespace). Append maintains a bounded list
// per key: once the list holds maxLen elements, each append evicts the
// oldest element first. Appends to the same key are serialized by the
// implementation; appends to different keys may proceed in parallel.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for (ns, key), or ErrKeyNotFound.
	Get(ctx context.Context, ns, key string) ([]byte, error)

	// Set writes the value for (ns, key), replacing any previous value.
	Set(ctx context.Context, ns, key string, value []byte) error

	// Delete removes (ns, key). Deleting a missing key is not an error.
	Delete(ctx context.Context, ns, key string) error

	// Append adds value to the bounded list at (ns, key), evicting the
	// oldest element when the list already holds maxLen elements.
	// maxLen <= 0 means unbounded.
	Append(ctx context.Context, ns, key string, value []byte, maxLen int) error

	// GetList returns the list at (ns, key), oldest first, or
	// ErrKeyNotFound if no list exists.
	GetList(ctx context.Context, ns, key string) ([][]byte, error)

	// Keys returns all keys present in the namespace, in no particular order.
	Keys(ctx context.Context, ns string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Namespaces used by the personalization service. Centralized here so the
// two implementations and all callers agree on the layout.
const (
	NSUserFeatures       = "user_features"
	NSUserEvents         = "user_events"
	NSUserSkill          = "user_skill"
	NSGenerationFeatures = "generation_features"
	NSGenerationHistory  = "generation_history"
	NSToolUsage          = "tool_usage"
	NSExperiments        = "experiments"
	NSExperimentHistory  = "experiment_history"
	NSAssignments        = "assignments"
	NSExclusions         = "exclusions"
	NSResults            = "experiment_results"
)

// compositeKey joins a namespace and key into the flat key space used by
// backends that have no native namespace concept.
func compositeKey(ns, key string) string {
	return ns + "/" + key
}
