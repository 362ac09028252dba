// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package startup

import (
	"fmt"
	"math/big"

	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/registry"
)

// admitScrapedPool converts a scraper.Scraper snapshot into the registry's
// native pool representation and admits it, dispatching on protocol and, for
// V3/V4, the tier computed from the snapshot's tick/bitmap cardinality
// (spec §4.3 Tier selection).
func admitScrapedPool(reg *registry.Registry, raw registry.RawPoolState) (registry.PoolLocation, error) {
	switch raw.Protocol {
	case poolstate.ProtocolV2:
		pool := registry.V2Pool{
			Identifier: raw.Identifier,
			Token0:     raw.Token0,
			Token1:     raw.Token1,
			Reserve0:   nonNilBigInt(raw.Reserve0),
			Reserve1:   nonNilBigInt(raw.Reserve1),
		}
		return reg.AddUniswapV2Pool(pool), nil
	case poolstate.ProtocolV3, poolstate.ProtocolV4:
		tier := registry.DetermineTier(len(raw.Ticks), len(raw.TickBitmaps))
		pool := registry.ConcentratedPool{
			Identifier:      raw.Identifier,
			Tick:            raw.Tick,
			SqrtPriceX96:    raw.SqrtPriceX96,
			Liquidity:       raw.Liquidity,
			Ticks:           raw.Ticks,
			TickBitmapWords: len(raw.TickBitmaps),
		}
		return reg.AddByTier(raw.Protocol, tier, pool), nil
	default:
		return registry.PoolLocation{}, fmt.Errorf("%w: unknown protocol %q", ErrPoolFactory, raw.Protocol)
	}
}

// nonNilBigInt defaults a scraper-supplied reserve to zero: the Scraper
// interface permits a nil *big.Int, but the processor's reserve deltas
// (applyV2Reserves) assume a non-nil accumulator to add into.
func nonNilBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
