// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/luxfi/poolmirror/internal/poolstate"
)

// V2Pool is a constant-product pair's mirrored state.
type V2Pool struct {
	Identifier poolstate.PoolIdentifier
	Token0     [20]byte
	Token1     [20]byte
	Reserve0   *big.Int
	Reserve1   *big.Int
}

// ConcentratedPool is a V3/V4 concentrated-liquidity pool's mirrored state.
// Ticks is the sparse net-liquidity accumulator (tick_index -> net_liquidity
// delta); TickBitmapWords is carried through from the baseline scrape for
// tier classification but this repo does not interpret the bitmap itself
// (bitmap traversal is a downstream-query concern, out of scope per spec §1).
type ConcentratedPool struct {
	Identifier      poolstate.PoolIdentifier
	Tier            Tier
	Tick            int32
	SqrtPriceX96    *uint256.Int
	Liquidity       *uint256.Int
	Ticks           map[int32]*big.Int
	TickBitmapWords int
}

// PoolLocation is a stable handle into the tiered arena registry: which
// protocol/tier arena a pool lives in, and its dense index within it.
type PoolLocation struct {
	Protocol poolstate.Protocol
	Tier     Tier
	Index    int
}

func (l PoolLocation) String() string {
	return string(l.Protocol) + "/" + l.Tier.String() + "#" + strconv.Itoa(l.Index)
}

// RawPoolState is the scraper's baseline snapshot for a single pool, as
// consumed by the startup coordinator. The scraper itself is an external
// collaborator (spec §1); this type is the shape its result must take to
// flow into pool admission.
type RawPoolState struct {
	Identifier   poolstate.PoolIdentifier
	Protocol     poolstate.Protocol
	Token0       [20]byte
	Token1       [20]byte
	Reserve0     *big.Int
	Reserve1     *big.Int
	Tick         int32
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	Ticks        map[int32]*big.Int
	TickBitmaps  map[int]uint64
}
