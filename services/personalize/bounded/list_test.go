// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bounded

import (
	"sync"
	"testing"
)

func TestList_AppendWithinCapacity(t *testing.T) {
	l := NewList[int](3)

	l.Append(1)
	l.Append(2)

	if l.Len() != 2 {
		t.Errorf("expected len 2, got %d", l.Len())
	}
	snap := l.Snapshot()
	if snap[0] != 1 || snap[1] != 2 {
		t.Errorf("unexpected snapshot %v", snap)
	}
}

func TestList_EvictsOldestWhenFull(t *testing.T) {
	l := NewList[int](3)

	for i := 1; i <= 5; i++ {
		l.Append(i)
	}

	if l.Len() != 3 {
		t.Fatalf("expected len 3, got %d", l.Len())
	}
	snap := l.Snapshot()
	want := []int{3, 4, 5}
	for i, v := range want {
		if snap[i] != v {
			t.Errorf("snapshot[%d] = %d, want %d", i, snap[i], v)
		}
	}
}

func TestList_DefaultCapacity(t *testing.T) {
	l := NewList[string](0)
	if l.Cap() != 100 {
		t.Errorf("expected default cap 100, got %d", l.Cap())
	}
}

func TestList_Last(t *testing.T) {
	l := NewList[string](2)

	if _, ok := l.Last(); ok {
		t.Error("Last on empty list should return false")
	}

	l.Append("a")
	l.Append("b")
	last, ok := l.Last()
	if !ok || last != "b" {
		t.Errorf("Last = %q, %v; want \"b\", true", last, ok)
	}
}

func TestList_PruneKeepsMatching(t *testing.T) {
	l := NewList[int](10)
	for i := 0; i < 10; i++ {
		l.Append(i)
	}

	removed := l.Prune(func(v int) bool { return v >= 5 })

	if removed != 5 {
		t.Errorf("expected 5 removed, got %d", removed)
	}
	snap := l.Snapshot()
	if len(snap) != 5 || snap[0] != 5 {
		t.Errorf("unexpected snapshot after prune: %v", snap)
	}
}

func TestList_ConcurrentAppendHoldsCap(t *testing.T) {
	l := NewList[int](50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(g*100 + i)
			}
		}(g)
	}
	wg.Wait()

	if l.Len() != 50 {
		t.Errorf("expected len pinned at cap 50, got %d", l.Len())
	}
}
