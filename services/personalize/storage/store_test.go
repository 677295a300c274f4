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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openStores returns one of each Store implementation so the contract
// tests below run against both.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	bs, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

func TestStore_GetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, NSUserFeatures, "u1")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, s.Set(ctx, NSUserFeatures, "u1", []byte(`{"a":1}`)))

			v, err := s.Get(ctx, NSUserFeatures, "u1")
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"a":1}`), v)

			// Overwrite replaces.
			require.NoError(t, s.Set(ctx, NSUserFeatures, "u1", []byte(`{"a":2}`)))
			v, err = s.Get(ctx, NSUserFeatures, "u1")
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"a":2}`), v)
		})
	}
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, NSUserFeatures, "k", []byte("a")))
			require.NoError(t, s.Set(ctx, NSToolUsage, "k", []byte("b")))

			v, err := s.Get(ctx, NSUserFeatures, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), v)

			v, err = s.Get(ctx, NSToolUsage, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("b"), v)
		})
	}
}

func TestStore_AppendEvictsOldest(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, s.Append(ctx, NSUserEvents, "u1",
					[]byte(fmt.Sprintf("e%d", i)), 3))
			}

			list, err := s.GetList(ctx, NSUserEvents, "u1")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []byte("e2"), list[0])
			assert.Equal(t, []byte("e4"), list[2])
		})
	}
}

func TestStore_GetListMissingKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetList(ctx, NSUserEvents, "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, NSUserFeatures, "u1", []byte("x")))
			require.NoError(t, s.Delete(ctx, NSUserFeatures, "u1"))
			require.NoError(t, s.Delete(ctx, NSUserFeatures, "u1"))

			_, err := s.Get(ctx, NSUserFeatures, "u1")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestStore_KeysListsNamespace(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, NSExperiments, "t1", []byte("a")))
			require.NoError(t, s.Set(ctx, NSExperiments, "t2", []byte("b")))
			require.NoError(t, s.Set(ctx, NSAssignments, "other", []byte("c")))

			keys, err := s.Keys(ctx, NSExperiments)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"t1", "t2"}, keys)
		})
	}
}

func TestStore_ConcurrentAppendsSameKeyHoldCap(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			const maxLen = 50
			var wg sync.WaitGroup
			for g := 0; g < 4; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						_ = s.Append(ctx, NSToolUsage, "hot",
							[]byte(fmt.Sprintf("%d-%d", g, i)), maxLen)
					}
				}(g)
			}
			wg.Wait()

			list, err := s.GetList(ctx, NSToolUsage, "hot")
			require.NoError(t, err)
			assert.Len(t, list, maxLen)
		})
	}
}
