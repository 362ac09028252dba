// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/poolmirror/internal/poolstate"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestAddAndGetV2Pool(t *testing.T) {
	r := New()
	a := addr(1)
	loc := r.AddUniswapV2Pool(V2Pool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Token0:     addr(2),
		Token1:     addr(3),
		Reserve0:   big.NewInt(1000),
		Reserve1:   big.NewInt(2000),
	})
	require.Equal(t, poolstate.ProtocolV2, loc.Protocol)
	require.Equal(t, 0, loc.Index)

	got, ok := r.GetV2PoolLocation(a)
	require.True(t, ok)
	require.Equal(t, loc, got)

	v2, v3, v4 := r.Counts()
	require.Equal(t, 1, v2)
	require.Zero(t, v3)
	require.Zero(t, v4)
}

func TestDuplicateAdmissionIsNoOp(t *testing.T) {
	r := New()
	a := addr(9)
	id := poolstate.NewAddressIdentifier(a)
	loc1 := r.AddUniswapV2Pool(V2Pool{Identifier: id, Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)})
	loc2 := r.AddUniswapV2Pool(V2Pool{Identifier: id, Reserve0: big.NewInt(999), Reserve1: big.NewInt(999)})
	require.Equal(t, loc1, loc2)

	v2, _, _ := r.Counts()
	require.Equal(t, 1, v2)

	ok := r.WithV2Write(loc1, func(p *V2Pool) {
		require.Equal(t, 0, p.Reserve0.Cmp(big.NewInt(1)))
	})
	require.True(t, ok)
}

func TestV3TieredAdmissionAndLookup(t *testing.T) {
	r := New()
	a := addr(5)
	pool := ConcentratedPool{
		Identifier:   poolstate.NewAddressIdentifier(a),
		Tick:         10,
		SqrtPriceX96: uint256.NewInt(1),
		Liquidity:    uint256.NewInt(1),
		Ticks:        map[int32]*big.Int{},
	}
	loc := r.AddUniswapV3PopularPool(pool)
	require.Equal(t, TierPopular, loc.Tier)

	got, ok := r.GetV3PoolLocation(a)
	require.True(t, ok)
	require.Equal(t, loc, got)

	_, v3, _ := r.Counts()
	require.Equal(t, 1, v3)
}

func TestV4TierHomogeneityNoCrossTierMove(t *testing.T) {
	r := New()
	var id [32]byte
	id[0] = 7
	pool := ConcentratedPool{
		Identifier:   poolstate.NewPoolIDIdentifier(id),
		SqrtPriceX96: uint256.NewInt(1),
		Liquidity:    uint256.NewInt(1),
		Ticks:        map[int32]*big.Int{},
	}
	loc := r.AddUniswapV4LowPool(pool)
	require.Equal(t, TierLow, loc.Tier)

	// Re-admitting the same identifier into a different tier is still a
	// no-op against the tier it first landed in: the pool never moves.
	loc2 := r.AddUniswapV4MajorPool(pool)
	require.Equal(t, TierLow, loc2.Tier)
	require.Equal(t, loc, loc2)
}

func TestWriteThroughUnresolvedLocationFails(t *testing.T) {
	r := New()
	ok := r.WithV2Write(PoolLocation{Protocol: poolstate.ProtocolV2, Index: 42}, func(p *V2Pool) {})
	require.False(t, ok)
}

func TestDetermineTierThresholds(t *testing.T) {
	require.Equal(t, TierLow, DetermineTier(0, 0))
	require.Equal(t, TierLow, DetermineTier(49, 0))
	require.Equal(t, TierActive, DetermineTier(50, 0))
	require.Equal(t, TierPopular, DetermineTier(500, 0))
	require.Equal(t, TierMajor, DetermineTier(0, 5000))
}
