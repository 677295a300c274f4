// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// memoryShardCount is the number of lock shards in MemoryStore. Power of
// two so the shard index is a cheap mask.
const memoryShardCount = 64

// MemoryStore is an in-memory Store implementation.
//
// # Description
//
// Keys are hashed across lock shards so writers to different keys rarely
// contend and writers to the same key always serialize, which preserves
// the cap-and-evict-oldest ordering of bounded lists. Intended for tests
// and for single-process deployments that can tolerate data loss.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	shards [memoryShardCount]*memoryShard
}

type memoryShard struct {
	mu     sync.Mutex
	values map[string][]byte
	lists  map[string][][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{
			values: make(map[string][]byte),
			lists:  make(map[string][][]byte),
		}
	}
	return s
}

func (s *MemoryStore) shard(fullKey string) *memoryShard {
	return s.shards[xxhash.Sum64String(fullKey)&(memoryShardCount-1)]
}

// Get returns the value for (ns, key).
func (s *MemoryStore) Get(_ context.Context, ns, key string) ([]byte, error) {
	fk := compositeKey(ns, key)
	sh := s.shard(fk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.values[fk]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set writes the value for (ns, key).
func (s *MemoryStore) Set(_ context.Context, ns, key string, value []byte) error {
	fk := compositeKey(ns, key)
	sh := s.shard(fk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	sh.values[fk] = v
	return nil
}

// Delete removes (ns, key) from both the value and list spaces.
func (s *MemoryStore) Delete(_ context.Context, ns, key string) error {
	fk := compositeKey(ns, key)
	sh := s.shard(fk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.values, fk)
	delete(sh.lists, fk)
	return nil
}

// Append adds value to the bounded list at (ns, key).
func (s *MemoryStore) Append(_ context.Context, ns, key string, value []byte, maxLen int) error {
	fk := compositeKey(ns, key)
	sh := s.shard(fk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)

	list := sh.lists[fk]
	if maxLen > 0 && len(list) >= maxLen {
		// Evict oldest. Reuse the backing array so a hot key settles
		// into a fixed allocation.
		copy(list, list[1:])
		list[len(list)-1] = v
	} else {
		list = append(list, v)
	}
	sh.lists[fk] = list
	return nil
}

// GetList returns a copy of the list at (ns, key), oldest first.
func (s *MemoryStore) GetList(_ context.Context, ns, key string) ([][]byte, error) {
	fk := compositeKey(ns, key)
	sh := s.shard(fk)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	list, ok := sh.lists[fk]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([][]byte, len(list))
	for i, v := range list {
		c := make([]byte, len(v))
		copy(c, v)
		out[i] = c
	}
	return out, nil
}

// Keys returns all keys in the namespace across both value and list spaces.
func (s *MemoryStore) Keys(_ context.Context, ns string) ([]string, error) {
	prefix := ns + "/"
	var keys []string
	seen := make(map[string]struct{})

	for _, sh := range s.shards {
		sh.mu.Lock()
		for fk := range sh.values {
			if strings.HasPrefix(fk, prefix) {
				k := strings.TrimPrefix(fk, prefix)
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					keys = append(keys, k)
				}
			}
		}
		for fk := range sh.lists {
			if strings.HasPrefix(fk, prefix) {
				k := strings.TrimPrefix(fk, prefix)
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					keys = append(keys, k)
				}
			}
		}
		sh.mu.Unlock()
	}
	return keys, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
