// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/registry"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestProcessor() (*EventProcessor, *registry.Registry) {
	reg := registry.New()
	return New(reg, pmlog.Discard()), reg
}

func TestV2SwapUpdatesReserves(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(1)
	reg.AddUniswapV2Pool(registry.V2Pool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Reserve0:   big.NewInt(1000),
		Reserve1:   big.NewInt(2000),
	})

	evt := &poolstate.PoolEvent{
		Protocol:    poolstate.ProtocolV2,
		EventType:   poolstate.EventSwap,
		PoolAddress: a,
		Amount0:     big.NewInt(100),
		Amount1:     big.NewInt(-150),
	}
	require.NoError(t, p.ProcessEvent(evt))

	loc, ok := reg.GetV2PoolLocation(a)
	require.True(t, ok)
	reg.WithV2Write(loc, func(pool *registry.V2Pool) {
		require.Equal(t, 0, pool.Reserve0.Cmp(big.NewInt(1100)))
		require.Equal(t, 0, pool.Reserve1.Cmp(big.NewInt(1850)))
	})
	require.EqualValues(t, 1, p.Stats().V2SwapsProcessed)
}

func TestV2BurnSubtractsReserves(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(2)
	reg.AddUniswapV2Pool(registry.V2Pool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Reserve0:   big.NewInt(1000),
		Reserve1:   big.NewInt(2000),
	})
	evt := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV2, EventType: poolstate.EventBurn, PoolAddress: a,
		Amount0: big.NewInt(100), Amount1: big.NewInt(200),
	}
	require.NoError(t, p.ProcessEvent(evt))
	loc, _ := reg.GetV2PoolLocation(a)
	reg.WithV2Write(loc, func(pool *registry.V2Pool) {
		require.Equal(t, 0, pool.Reserve0.Cmp(big.NewInt(900)))
		require.Equal(t, 0, pool.Reserve1.Cmp(big.NewInt(1800)))
	})
}

func TestV2SwapPoolNotFound(t *testing.T) {
	p, _ := newTestProcessor()
	evt := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV2, EventType: poolstate.EventSwap, PoolAddress: addr(9),
		Amount0: big.NewInt(1), Amount1: big.NewInt(1),
	}
	err := p.ProcessEvent(evt)
	require.ErrorIs(t, err, ErrPoolNotFound)
	require.EqualValues(t, 1, p.Stats().Errors)
}

func TestV3SwapOverwritesFields(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(3)
	reg.AddUniswapV3ActivePool(registry.ConcentratedPool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Ticks:      map[int32]*big.Int{},
	})
	tick := int32(42)
	evt := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV3, EventType: poolstate.EventSwap, PoolAddress: a,
		SqrtPriceX96: uint256.NewInt(555), Tick: &tick, Liquidity: uint256.NewInt(777),
	}
	require.NoError(t, p.ProcessEvent(evt))

	loc, _ := reg.GetV3PoolLocation(a)
	reg.WithV3Write(loc, func(pool *registry.ConcentratedPool) {
		require.EqualValues(t, 42, pool.Tick)
		require.True(t, pool.SqrtPriceX96.Eq(uint256.NewInt(555)))
		require.True(t, pool.Liquidity.Eq(uint256.NewInt(777)))
	})
	require.EqualValues(t, 1, p.Stats().V3SwapsProcessed)
}

func TestV3SwapMissingFieldIsInvalidEventData(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(4)
	reg.AddUniswapV3LowPool(registry.ConcentratedPool{Identifier: poolstate.NewAddressIdentifier(a), Ticks: map[int32]*big.Int{}})
	evt := &poolstate.PoolEvent{Protocol: poolstate.ProtocolV3, EventType: poolstate.EventSwap, PoolAddress: a}
	err := p.ProcessEvent(evt)
	require.ErrorIs(t, err, ErrInvalidEventData)
}

func TestV3MintAppliesRangeDelta(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(5)
	reg.AddUniswapV3ActivePool(registry.ConcentratedPool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Tick:       50,
		Liquidity:  uint256.NewInt(1000),
		Ticks:      map[int32]*big.Int{},
	})
	lower, upper := int32(0), int32(100)
	evt := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV3, EventType: poolstate.EventMint, PoolAddress: a,
		TickLower: &lower, TickUpper: &upper, LiquidityDelta: big.NewInt(500),
	}
	require.NoError(t, p.ProcessEvent(evt))

	loc, _ := reg.GetV3PoolLocation(a)
	reg.WithV3Write(loc, func(pool *registry.ConcentratedPool) {
		require.Equal(t, 0, pool.Ticks[lower].Cmp(big.NewInt(500)))
		require.Equal(t, 0, pool.Ticks[upper].Cmp(big.NewInt(-500)))
		// current tick 50 is in [0,100): active liquidity increases too.
		require.True(t, pool.Liquidity.Eq(uint256.NewInt(1500)))
	})
}

func TestV3BurnNegatesDeltaAndOutOfRangeSkipsActive(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(6)
	reg.AddUniswapV3ActivePool(registry.ConcentratedPool{
		Identifier: poolstate.NewAddressIdentifier(a),
		Tick:       200, // outside [0,100)
		Liquidity:  uint256.NewInt(1000),
		Ticks:      map[int32]*big.Int{0: big.NewInt(500), 100: big.NewInt(-500)},
	})
	lower, upper := int32(0), int32(100)
	evt := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV3, EventType: poolstate.EventBurn, PoolAddress: a,
		TickLower: &lower, TickUpper: &upper, LiquidityDelta: big.NewInt(500),
	}
	require.NoError(t, p.ProcessEvent(evt))

	loc, _ := reg.GetV3PoolLocation(a)
	reg.WithV3Write(loc, func(pool *registry.ConcentratedPool) {
		require.Equal(t, 0, pool.Ticks[lower].Cmp(big.NewInt(0)))
		require.Equal(t, 0, pool.Ticks[upper].Cmp(big.NewInt(0)))
		// tick 200 is outside range; active liquidity untouched.
		require.True(t, pool.Liquidity.Eq(uint256.NewInt(1000)))
	})
	require.EqualValues(t, 1, p.Stats().V3BurnsProcessed)
}

func TestV4ModifyLiquidityPositiveAndNegativeDirection(t *testing.T) {
	p, reg := newTestProcessor()
	var poolID [32]byte
	poolID[0] = 1
	reg.AddUniswapV4LowPool(registry.ConcentratedPool{
		Identifier: poolstate.NewPoolIDIdentifier(poolID),
		Tick:       10,
		Liquidity:  uint256.NewInt(100),
		Ticks:      map[int32]*big.Int{},
	})
	lower, upper := int32(0), int32(20)

	add := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV4, EventType: poolstate.EventModifyLiquidity, PoolID: &poolID,
		TickLower: &lower, TickUpper: &upper, LiquidityDelta: big.NewInt(50),
	}
	require.NoError(t, p.ProcessEvent(add))

	remove := &poolstate.PoolEvent{
		Protocol: poolstate.ProtocolV4, EventType: poolstate.EventModifyLiquidity, PoolID: &poolID,
		TickLower: &lower, TickUpper: &upper, LiquidityDelta: big.NewInt(-30),
	}
	require.NoError(t, p.ProcessEvent(remove))

	loc, _ := reg.GetV4PoolLocation(poolID)
	reg.WithV4Write(loc, func(pool *registry.ConcentratedPool) {
		require.True(t, pool.Liquidity.Eq(uint256.NewInt(120))) // 100+50-30
	})
	require.EqualValues(t, 2, p.Stats().V4ModifyLiquidityProcessed)
}

func TestUnsupportedProtocol(t *testing.T) {
	p, _ := newTestProcessor()
	evt := &poolstate.PoolEvent{Protocol: "sushi_v1", EventType: poolstate.EventSwap}
	err := p.ProcessEvent(evt)
	require.ErrorIs(t, err, ErrUnsupportedProtocol)
	require.EqualValues(t, 1, p.Stats().Errors)
}

func TestUnsupportedEventType(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(7)
	reg.AddUniswapV2Pool(registry.V2Pool{Identifier: poolstate.NewAddressIdentifier(a), Reserve0: big.NewInt(0), Reserve1: big.NewInt(0)})
	evt := &poolstate.PoolEvent{Protocol: poolstate.ProtocolV2, EventType: "Flash", PoolAddress: a}
	err := p.ProcessEvent(evt)
	require.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestRevertEventIsCountedNotProcessed(t *testing.T) {
	p, _ := newTestProcessor()
	evt := &poolstate.PoolEvent{Protocol: poolstate.ProtocolV2, EventType: poolstate.EventSwap, IsRevert: true}
	require.NoError(t, p.ProcessEvent(evt))
	require.EqualValues(t, 1, p.Stats().RevertsProcessed)
	require.Zero(t, p.Stats().V2SwapsProcessed)
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	p, reg := newTestProcessor()
	a := addr(8)
	reg.AddUniswapV2Pool(registry.V2Pool{Identifier: poolstate.NewAddressIdentifier(a), Reserve0: big.NewInt(10), Reserve1: big.NewInt(10)})

	events := []poolstate.PoolEvent{
		{Protocol: "sushi_v1", EventType: poolstate.EventSwap},
		{Protocol: poolstate.ProtocolV2, EventType: poolstate.EventSwap, PoolAddress: a, Amount0: big.NewInt(1), Amount1: big.NewInt(1)},
		{Protocol: poolstate.ProtocolV2, EventType: poolstate.EventSwap, PoolAddress: addr(200), Amount0: big.NewInt(1), Amount1: big.NewInt(1)},
	}
	errs := p.ProcessBatch(events)
	require.Len(t, errs, 2)
	require.EqualValues(t, 1, p.Stats().V2SwapsProcessed)
}

func TestApplyLiquidityDeltaOverflow(t *testing.T) {
	_, err := applyLiquidityDelta(maxI128, big.NewInt(1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = applyLiquidityDelta(minI128, big.NewInt(-1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	sum, err := applyLiquidityDelta(big.NewInt(1000), big.NewInt(-200))
	require.NoError(t, err)
	require.Equal(t, 0, sum.Cmp(big.NewInt(800)))
}

func TestTickInRangeBounds(t *testing.T) {
	require.True(t, tickInRange(100, 50, 150))
	require.True(t, tickInRange(50, 50, 150))
	require.False(t, tickInRange(150, 50, 150))
	require.False(t, tickInRange(200, 50, 150))
}
