// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bounded provides capped append-only collections with oldest-first
// eviction. Every per-user, per-tool, and per-test history in the
// personalization service is one of these lists, independently locked so
// writers to different keys never contend.
package bounded

import "sync"

// List is a capped list that evicts its oldest element when full.
//
// # Description
//
// Append is O(1) amortized. When the list reaches capacity, each new
// append discards the oldest element first. Snapshot returns a copy so
// callers can iterate without holding the lock.
//
// # Thread Safety
//
// Safe for concurrent use. Each List owns its own mutex; callers that
// shard histories by key get per-key serialization for free.
type List[T any] struct {
	mu   sync.Mutex
	data []T
	cap  int
}

// NewList creates a bounded list with the given capacity.
//
// # Inputs
//
//   - capacity: Maximum number of elements. Values <= 0 fall back to 100.
func NewList[T any](capacity int) *List[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &List[T]{
		data: make([]T, 0, capacity),
		cap:  capacity,
	}
}

// Append adds an item, evicting the oldest element if the list is full.
func (l *List[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.data) >= l.cap {
		// Shift rather than reslice so the backing array never grows
		// past capacity and evicted elements drop their references.
		copy(l.data, l.data[1:])
		l.data[len(l.data)-1] = item
		return
	}
	l.data = append(l.data, item)
}

// Len returns the current number of elements.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// Cap returns the maximum capacity.
func (l *List[T]) Cap() int {
	return l.cap
}

// Snapshot returns a copy of the current contents, oldest first.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]T, len(l.data))
	copy(out, l.data)
	return out
}

// Last returns the most recently appended element.
//
// # Outputs
//
//   - T: The newest element.
//   - bool: False if the list is empty.
func (l *List[T]) Last() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if len(l.data) == 0 {
		return zero, false
	}
	return l.data[len(l.data)-1], true
}

// Prune removes every element for which keep returns false.
//
// # Description
//
// Builds the surviving slice in full before swapping it in, so a panic in
// keep can never leave the list partially truncated. Used by the monitor
// sweep to age out history older than the retention window.
//
// # Outputs
//
//   - int: Number of elements removed.
func (l *List[T]) Prune(keep func(T) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]T, 0, len(l.data))
	for _, item := range l.data {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	removed := len(l.data) - len(kept)
	l.data = kept
	return removed
}
