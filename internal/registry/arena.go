// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import "github.com/luxfi/poolmirror/internal/poolstate"

// arena is a dense, append-only store for one (protocol, tier) pool class.
// Pools never move between arenas once admitted (tier-homogeneity, spec
// invariant 5), so a stable dense index is a valid long-lived handle.
type arena[T any] struct {
	pools []T
	index map[poolstate.PoolIdentifier]int
}

func newArena[T any]() *arena[T] {
	return &arena[T]{index: make(map[poolstate.PoolIdentifier]int)}
}

// lookup returns the dense index for id, if admitted.
func (a *arena[T]) lookup(id poolstate.PoolIdentifier) (int, bool) {
	idx, ok := a.index[id]
	return idx, ok
}

// admit appends pool under id unless id is already present, in which case it
// is a no-op (duplicate admission is idempotent, SPEC_FULL.md §9 Open
// Question 1) and the existing index is returned.
func (a *arena[T]) admit(id poolstate.PoolIdentifier, pool T) int {
	if idx, ok := a.index[id]; ok {
		return idx
	}
	idx := len(a.pools)
	a.pools = append(a.pools, pool)
	a.index[id] = idx
	return idx
}

func (a *arena[T]) get(idx int) *T {
	if idx < 0 || idx >= len(a.pools) {
		return nil
	}
	return &a.pools[idx]
}

func (a *arena[T]) len() int { return len(a.pools) }
