// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package processor applies PoolEvents to the arena registry, routing by
// (protocol, event_type) per SPEC_FULL.md §4.2.
package processor

import (
	"fmt"
	"math/big"

	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/registry"
)

// EventProcessor applies pool events to the shared arena registry, one at a
// time, in order. It is not safe for concurrent use by multiple goroutines
// (spec §5: processor suspension points are explicit, owned by a single
// caller).
type EventProcessor struct {
	registry *registry.Registry
	log      pmlog.Logger
	stats    Stats
}

// New returns a processor writing through reg.
func New(reg *registry.Registry, log pmlog.Logger) *EventProcessor {
	return &EventProcessor{registry: reg, log: log}
}

// Stats returns a snapshot of the processor's counters.
func (p *EventProcessor) Stats() Stats { return p.stats }

// ResetStats zeroes all counters.
func (p *EventProcessor) ResetStats() { p.stats = Stats{} }

// ProcessEvent routes a single event to its protocol/event-type handler.
// Revert events are counted and otherwise ignored (rollback is out of scope,
// spec §4.1).
func (p *EventProcessor) ProcessEvent(event *poolstate.PoolEvent) error {
	if event.IsRevert {
		p.log.Warn("processing revert event, reverting pool state changes not implemented",
			"block", event.BlockNumber)
		p.stats.RevertsProcessed++
		return nil
	}

	switch event.Protocol {
	case poolstate.ProtocolV2:
		return p.processV2(event)
	case poolstate.ProtocolV3:
		return p.processV3(event)
	case poolstate.ProtocolV4:
		return p.processV4(event)
	default:
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, event.Protocol)
	}
}

// ProcessBatch walks events in order, applying each. Individual failures are
// logged and collected but do not stop the walk; ordering is preserved.
func (p *EventProcessor) ProcessBatch(events []poolstate.PoolEvent) []error {
	var errs []error
	for i := range events {
		evt := &events[i]
		if err := p.ProcessEvent(evt); err != nil {
			p.log.Error("error processing event",
				"block", evt.BlockNumber, "tx", evt.TxIndex, "log", evt.LogIndex, "err", err)
			errs = append(errs, err)
		}
	}
	return errs
}

func (p *EventProcessor) processV2(event *poolstate.PoolEvent) error {
	switch event.EventType {
	case poolstate.EventSwap:
		return p.processV2Swap(event)
	case poolstate.EventMint:
		return p.processV2Mint(event)
	case poolstate.EventBurn:
		return p.processV2Burn(event)
	default:
		p.stats.Errors++
		return fmt.Errorf("%w: v2 %s", ErrUnsupportedEventType, event.EventType)
	}
}

func (p *EventProcessor) v2PoolLocation(event *poolstate.PoolEvent) (registry.PoolLocation, error) {
	loc, ok := p.registry.GetV2PoolLocation(event.PoolAddress)
	if !ok {
		p.stats.Errors++
		return registry.PoolLocation{}, &PoolNotFoundError{Identifier: poolstate.NewAddressIdentifier(event.PoolAddress)}
	}
	return loc, nil
}

// applyV2Reserves adds (sign * amount0) to reserve0 and (sign * amount1) to
// reserve1. Swap applies the signed deltas directly (sign=1); Mint adds
// (sign=1); Burn subtracts (sign=-1).
func (p *EventProcessor) applyV2Reserves(event *poolstate.PoolEvent, sign int64) error {
	if event.Amount0 == nil || event.Amount1 == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: amount0/amount1", ErrInvalidEventData)
	}
	loc, err := p.v2PoolLocation(event)
	if err != nil {
		return err
	}
	mul := big.NewInt(sign)
	d0 := new(big.Int).Mul(event.Amount0, mul)
	d1 := new(big.Int).Mul(event.Amount1, mul)

	ok := p.registry.WithV2Write(loc, func(pool *registry.V2Pool) {
		pool.Reserve0 = new(big.Int).Add(pool.Reserve0, d0)
		pool.Reserve1 = new(big.Int).Add(pool.Reserve1, d1)
	})
	if !ok {
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrArenaRegistry, loc)
	}
	return nil
}

func (p *EventProcessor) processV2Swap(event *poolstate.PoolEvent) error {
	p.log.Debug("processing v2 swap", "pool", event.PoolAddress, "amount0", event.Amount0, "amount1", event.Amount1)
	if err := p.applyV2Reserves(event, 1); err != nil {
		return err
	}
	p.stats.V2SwapsProcessed++
	return nil
}

func (p *EventProcessor) processV2Mint(event *poolstate.PoolEvent) error {
	p.log.Debug("processing v2 mint", "pool", event.PoolAddress, "amount0", event.Amount0, "amount1", event.Amount1)
	if err := p.applyV2Reserves(event, 1); err != nil {
		return err
	}
	p.stats.V2MintsProcessed++
	return nil
}

func (p *EventProcessor) processV2Burn(event *poolstate.PoolEvent) error {
	p.log.Debug("processing v2 burn", "pool", event.PoolAddress, "amount0", event.Amount0, "amount1", event.Amount1)
	if err := p.applyV2Reserves(event, -1); err != nil {
		return err
	}
	p.stats.V2BurnsProcessed++
	return nil
}

func (p *EventProcessor) processV3(event *poolstate.PoolEvent) error {
	switch event.EventType {
	case poolstate.EventSwap:
		return p.processV3Swap(event)
	case poolstate.EventMint:
		return p.processRangeDelta(event, false)
	case poolstate.EventBurn:
		return p.processRangeDelta(event, true)
	default:
		p.stats.Errors++
		return fmt.Errorf("%w: v3 %s", ErrUnsupportedEventType, event.EventType)
	}
}

func (p *EventProcessor) processV3Swap(event *poolstate.PoolEvent) error {
	if event.SqrtPriceX96 == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: sqrt_price_x96", ErrInvalidEventData)
	}
	if event.Tick == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick", ErrInvalidEventData)
	}
	if event.Liquidity == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: liquidity", ErrInvalidEventData)
	}

	p.log.Debug("processing v3 swap", "pool", event.PoolAddress,
		"sqrt_price", event.SqrtPriceX96, "tick", *event.Tick, "liquidity", event.Liquidity)

	loc, ok := p.registry.GetV3PoolLocation(event.PoolAddress)
	if !ok {
		p.stats.Errors++
		return &PoolNotFoundError{Identifier: poolstate.NewAddressIdentifier(event.PoolAddress)}
	}

	ok = p.registry.WithV3Write(loc, func(pool *registry.ConcentratedPool) {
		pool.SqrtPriceX96 = event.SqrtPriceX96
		pool.Tick = *event.Tick
		pool.Liquidity = event.Liquidity
	})
	if !ok {
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrArenaRegistry, loc)
	}
	p.stats.V3SwapsProcessed++
	return nil
}

func (p *EventProcessor) processV4(event *poolstate.PoolEvent) error {
	switch event.EventType {
	case poolstate.EventSwap:
		return p.processV4Swap(event)
	case poolstate.EventModifyLiquidity:
		return p.processV4ModifyLiquidity(event)
	default:
		p.stats.Errors++
		return fmt.Errorf("%w: v4 %s", ErrUnsupportedEventType, event.EventType)
	}
}

func (p *EventProcessor) processV4Swap(event *poolstate.PoolEvent) error {
	if event.PoolID == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: pool_id", ErrInvalidEventData)
	}
	if event.SqrtPriceX96 == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: sqrt_price_x96", ErrInvalidEventData)
	}
	if event.Tick == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick", ErrInvalidEventData)
	}
	if event.Liquidity == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: liquidity", ErrInvalidEventData)
	}

	p.log.Debug("processing v4 swap", "pool_id", *event.PoolID,
		"sqrt_price", event.SqrtPriceX96, "tick", *event.Tick, "liquidity", event.Liquidity)

	loc, ok := p.registry.GetV4PoolLocation(*event.PoolID)
	if !ok {
		p.stats.Errors++
		return &PoolNotFoundError{Identifier: poolstate.NewPoolIDIdentifier(*event.PoolID)}
	}

	ok = p.registry.WithV4Write(loc, func(pool *registry.ConcentratedPool) {
		pool.SqrtPriceX96 = event.SqrtPriceX96
		pool.Tick = *event.Tick
		pool.Liquidity = event.Liquidity
	})
	if !ok {
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrArenaRegistry, loc)
	}
	p.stats.V4SwapsProcessed++
	return nil
}

// processRangeDelta handles V3 Mint/Burn: it resolves the pool by address and
// applies the range delta through applyRangeDelta (spec §4.2): Δ is added to
// the net-liquidity accumulator at tick_lower, subtracted at tick_upper, and
// added to the pool's active liquidity if the current tick is in range.
// v3Negate negates the delta before applying, as V3 Burn does. V4
// ModifyLiquidity goes through processV4ModifyLiquidity instead.
func (p *EventProcessor) processRangeDelta(event *poolstate.PoolEvent, v3Negate bool) error {
	if event.TickLower == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick_lower", ErrInvalidEventData)
	}
	if event.TickUpper == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick_upper", ErrInvalidEventData)
	}
	if event.LiquidityDelta == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: liquidity_delta", ErrInvalidEventData)
	}

	delta := event.LiquidityDelta
	if v3Negate {
		delta = new(big.Int).Neg(delta)
	}

	loc, ok := p.registry.GetV3PoolLocation(event.PoolAddress)
	if !ok {
		p.stats.Errors++
		return &PoolNotFoundError{Identifier: poolstate.NewAddressIdentifier(event.PoolAddress)}
	}

	var applyErr error
	ok = p.registry.WithV3Write(loc, func(pool *registry.ConcentratedPool) {
		applyErr = applyRangeDelta(pool, *event.TickLower, *event.TickUpper, delta)
	})
	if !ok {
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrArenaRegistry, loc)
	}
	if applyErr != nil {
		p.stats.Errors++
		return applyErr
	}

	if event.EventType == poolstate.EventMint {
		p.stats.V3MintsProcessed++
	} else {
		p.stats.V3BurnsProcessed++
	}
	return nil
}

func (p *EventProcessor) processV4ModifyLiquidity(event *poolstate.PoolEvent) error {
	if event.PoolID == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: pool_id", ErrInvalidEventData)
	}
	if event.TickLower == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick_lower", ErrInvalidEventData)
	}
	if event.TickUpper == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: tick_upper", ErrInvalidEventData)
	}
	if event.LiquidityDelta == nil {
		p.stats.Errors++
		return fmt.Errorf("%w: liquidity_delta", ErrInvalidEventData)
	}

	p.log.Debug("processing v4 modify liquidity", "pool_id", *event.PoolID,
		"tick_lower", *event.TickLower, "tick_upper", *event.TickUpper, "delta", event.LiquidityDelta)

	loc, ok := p.registry.GetV4PoolLocation(*event.PoolID)
	if !ok {
		p.stats.Errors++
		return &PoolNotFoundError{Identifier: poolstate.NewPoolIDIdentifier(*event.PoolID)}
	}

	var applyErr error
	ok = p.registry.WithV4Write(loc, func(pool *registry.ConcentratedPool) {
		applyErr = applyRangeDelta(pool, *event.TickLower, *event.TickUpper, event.LiquidityDelta)
	})
	if !ok {
		p.stats.Errors++
		return fmt.Errorf("%w: %s", ErrArenaRegistry, loc)
	}
	if applyErr != nil {
		p.stats.Errors++
		return applyErr
	}

	p.stats.V4ModifyLiquidityProcessed++
	return nil
}

func applyRangeDelta(pool *registry.ConcentratedPool, lower, upper int32, delta *big.Int) error {
	lowerNet, ok := pool.Ticks[lower]
	if !ok {
		lowerNet = big.NewInt(0)
	}
	newLower, err := applyLiquidityDelta(lowerNet, delta)
	if err != nil {
		return err
	}

	upperNet, ok := pool.Ticks[upper]
	if !ok {
		upperNet = big.NewInt(0)
	}
	negDelta := new(big.Int).Neg(delta)
	newUpper, err := applyLiquidityDelta(upperNet, negDelta)
	if err != nil {
		return err
	}

	pool.Ticks[lower] = newLower
	pool.Ticks[upper] = newUpper

	if tickInRange(pool.Tick, lower, upper) {
		active := new(big.Int)
		if pool.Liquidity != nil {
			active = pool.Liquidity.ToBig()
		}
		newActive, err := applyLiquidityDelta(active, delta)
		if err != nil {
			return err
		}
		u, overflow := uint256FromBig(newActive)
		if overflow {
			return fmt.Errorf("%w: active liquidity went negative or exceeds u256: %s", ErrArithmeticOverflow, newActive)
		}
		pool.Liquidity = u
	}
	return nil
}
