// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"sync"

	"github.com/luxfi/poolmirror/internal/poolstate"
)

// Registry is the passive, shared pool-state container the event processor
// and startup coordinator mutate (spec §2). It is read-mostly: the many
// Get*Location lookups take a shared read lock; admission takes the
// exclusive write lock (spec §5).
type Registry struct {
	mu sync.RWMutex

	v2 *arena[V2Pool]

	v3Low     *arena[ConcentratedPool]
	v3Active  *arena[ConcentratedPool]
	v3Popular *arena[ConcentratedPool]
	v3Major   *arena[ConcentratedPool]

	v4Low     *arena[ConcentratedPool]
	v4Active  *arena[ConcentratedPool]
	v4Popular *arena[ConcentratedPool]
	v4Major   *arena[ConcentratedPool]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		v2:        newArena[V2Pool](),
		v3Low:     newArena[ConcentratedPool](),
		v3Active:  newArena[ConcentratedPool](),
		v3Popular: newArena[ConcentratedPool](),
		v3Major:   newArena[ConcentratedPool](),
		v4Low:     newArena[ConcentratedPool](),
		v4Active:  newArena[ConcentratedPool](),
		v4Popular: newArena[ConcentratedPool](),
		v4Major:   newArena[ConcentratedPool](),
	}
}

func (r *Registry) v3ArenaForTier(t Tier) *arena[ConcentratedPool] {
	switch t {
	case TierLow:
		return r.v3Low
	case TierActive:
		return r.v3Active
	case TierPopular:
		return r.v3Popular
	default:
		return r.v3Major
	}
}

func (r *Registry) v4ArenaForTier(t Tier) *arena[ConcentratedPool] {
	switch t {
	case TierLow:
		return r.v4Low
	case TierActive:
		return r.v4Active
	case TierPopular:
		return r.v4Popular
	default:
		return r.v4Major
	}
}

// GetV2PoolLocation resolves a V2 pool address to its arena location.
func (r *Registry) GetV2PoolLocation(addr [20]byte) (PoolLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := poolstate.NewAddressIdentifier(addr)
	idx, ok := r.v2.lookup(id)
	if !ok {
		return PoolLocation{}, false
	}
	return PoolLocation{Protocol: poolstate.ProtocolV2, Index: idx}, true
}

// GetV3PoolLocation resolves a V3 pool address to its arena location,
// searching all four tiers.
func (r *Registry) GetV3PoolLocation(addr [20]byte) (PoolLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := poolstate.NewAddressIdentifier(addr)
	for _, tier := range []Tier{TierLow, TierActive, TierPopular, TierMajor} {
		if idx, ok := r.v3ArenaForTier(tier).lookup(id); ok {
			return PoolLocation{Protocol: poolstate.ProtocolV3, Tier: tier, Index: idx}, true
		}
	}
	return PoolLocation{}, false
}

// GetV4PoolLocation resolves a V4 pool id to its arena location, searching
// all four tiers.
func (r *Registry) GetV4PoolLocation(poolID [32]byte) (PoolLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := poolstate.NewPoolIDIdentifier(poolID)
	for _, tier := range []Tier{TierLow, TierActive, TierPopular, TierMajor} {
		if idx, ok := r.v4ArenaForTier(tier).lookup(id); ok {
			return PoolLocation{Protocol: poolstate.ProtocolV4, Tier: tier, Index: idx}, true
		}
	}
	return PoolLocation{}, false
}

// AddUniswapV2Pool admits a V2 pool. Duplicate admission of the same
// identifier is a no-op (spec §9 Open Question 1).
func (r *Registry) AddUniswapV2Pool(pool V2Pool) PoolLocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.v2.admit(pool.Identifier, pool)
	return PoolLocation{Protocol: poolstate.ProtocolV2, Index: idx}
}

// findV3 searches every tier arena for id, without taking a lock (caller
// must already hold r.mu).
func (r *Registry) findV3(id poolstate.PoolIdentifier) (PoolLocation, bool) {
	for _, tier := range []Tier{TierLow, TierActive, TierPopular, TierMajor} {
		if idx, ok := r.v3ArenaForTier(tier).lookup(id); ok {
			return PoolLocation{Protocol: poolstate.ProtocolV3, Tier: tier, Index: idx}, true
		}
	}
	return PoolLocation{}, false
}

func (r *Registry) findV4(id poolstate.PoolIdentifier) (PoolLocation, bool) {
	for _, tier := range []Tier{TierLow, TierActive, TierPopular, TierMajor} {
		if idx, ok := r.v4ArenaForTier(tier).lookup(id); ok {
			return PoolLocation{Protocol: poolstate.ProtocolV4, Tier: tier, Index: idx}, true
		}
	}
	return PoolLocation{}, false
}

// addV3 admits pool into the requested tier's arena. Per-arena admission is
// idempotent on identifier (arena.admit), but that alone is not enough to
// keep a pool from being admitted into a second tier arena under the same
// identifier: each tier has its own dense index. So addV3 first checks
// whether id already lives in ANY tier arena and, if so, returns that
// existing location untouched — the requested tier is ignored, preserving
// tier-homogeneity (spec invariant 5: a pool never moves between tiers).
func (r *Registry) addV3(tier Tier, pool ConcentratedPool) PoolLocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loc, ok := r.findV3(pool.Identifier); ok {
		return loc
	}
	pool.Tier = tier
	idx := r.v3ArenaForTier(tier).admit(pool.Identifier, pool)
	return PoolLocation{Protocol: poolstate.ProtocolV3, Tier: tier, Index: idx}
}

// addV4 is the V4 analogue of addV3.
func (r *Registry) addV4(tier Tier, pool ConcentratedPool) PoolLocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loc, ok := r.findV4(pool.Identifier); ok {
		return loc
	}
	pool.Tier = tier
	idx := r.v4ArenaForTier(tier).admit(pool.Identifier, pool)
	return PoolLocation{Protocol: poolstate.ProtocolV4, Tier: tier, Index: idx}
}

func (r *Registry) AddUniswapV3LowPool(pool ConcentratedPool) PoolLocation     { return r.addV3(TierLow, pool) }
func (r *Registry) AddUniswapV3ActivePool(pool ConcentratedPool) PoolLocation  { return r.addV3(TierActive, pool) }
func (r *Registry) AddUniswapV3PopularPool(pool ConcentratedPool) PoolLocation { return r.addV3(TierPopular, pool) }
func (r *Registry) AddUniswapV3MajorPool(pool ConcentratedPool) PoolLocation   { return r.addV3(TierMajor, pool) }

func (r *Registry) AddUniswapV4LowPool(pool ConcentratedPool) PoolLocation     { return r.addV4(TierLow, pool) }
func (r *Registry) AddUniswapV4ActivePool(pool ConcentratedPool) PoolLocation  { return r.addV4(TierActive, pool) }
func (r *Registry) AddUniswapV4PopularPool(pool ConcentratedPool) PoolLocation { return r.addV4(TierPopular, pool) }
func (r *Registry) AddUniswapV4MajorPool(pool ConcentratedPool) PoolLocation   { return r.addV4(TierMajor, pool) }

// AddByTier admits a ConcentratedPool into the tier-appropriate arena for the
// given protocol, dispatching through the single per-(protocol,tier)
// admission surface named in spec §6 (design note: "a single dispatch that
// routes on the tier tag").
func (r *Registry) AddByTier(protocol poolstate.Protocol, tier Tier, pool ConcentratedPool) PoolLocation {
	if protocol == poolstate.ProtocolV4 {
		return r.addV4(tier, pool)
	}
	return r.addV3(tier, pool)
}

// WithV2Write runs fn with exclusive access to the V2 pool at loc, for
// mutation by the event processor. fn must not retain the pointer.
func (r *Registry) WithV2Write(loc PoolLocation, fn func(*V2Pool)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.v2.get(loc.Index)
	if pool == nil {
		return false
	}
	fn(pool)
	return true
}

// WithV3Write runs fn with exclusive access to the V3 pool at loc.
func (r *Registry) WithV3Write(loc PoolLocation, fn func(*ConcentratedPool)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.v3ArenaForTier(loc.Tier).get(loc.Index)
	if pool == nil {
		return false
	}
	fn(pool)
	return true
}

// WithV4Write runs fn with exclusive access to the V4 pool at loc.
func (r *Registry) WithV4Write(loc PoolLocation, fn func(*ConcentratedPool)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.v4ArenaForTier(loc.Tier).get(loc.Index)
	if pool == nil {
		return false
	}
	fn(pool)
	return true
}

// Counts returns the number of admitted pools per protocol, for metrics and
// test assertions.
func (r *Registry) Counts() (v2, v3, v4 int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v3 = r.v3Low.len() + r.v3Active.len() + r.v3Popular.len() + r.v3Major.len()
	v4 = r.v4Low.len() + r.v4Active.len() + r.v4Popular.len() + r.v4Major.len()
	return r.v2.len(), v3, v4
}
