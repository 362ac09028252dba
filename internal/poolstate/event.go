// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package poolstate

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

// PoolEvent is a single pool mutation observed on chain. Optional fields are
// nil/zero-valued when the event's (protocol, event_type) pair does not
// carry them; the event processor validates presence per dispatch entry.
type PoolEvent struct {
	BlockNumber uint64
	TxIndex     uint32
	LogIndex    uint32

	Protocol  Protocol
	EventType EventType

	PoolAddress [20]byte
	PoolID      *[32]byte // only set for v4 events

	Amount0 *big.Int // signed 256-bit
	Amount1 *big.Int // signed 256-bit

	SqrtPriceX96 *uint256.Int // unsigned 160-bit, Q96
	Tick         *int32

	Liquidity *uint256.Int // unsigned 128-bit

	TickLower      *int32
	TickUpper      *int32
	LiquidityDelta *big.Int // signed 128-bit

	IsRevert bool
}

// Identifier returns the PoolIdentifier this event targets: the V4 pool id
// when present, otherwise the 20-byte address.
func (e *PoolEvent) Identifier() PoolIdentifier {
	if e.PoolID != nil {
		return NewPoolIDIdentifier(*e.PoolID)
	}
	return NewAddressIdentifier(e.PoolAddress)
}

// Less implements the total chronological order used for sorting buffered
// events: (block_number, tx_index, log_index) ascending.
func (e *PoolEvent) Less(other *PoolEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	if e.TxIndex != other.TxIndex {
		return e.TxIndex < other.TxIndex
	}
	return e.LogIndex < other.LogIndex
}

// SortEvents sorts events in place by chronological key, per the buffer
// contract of take_buffered_events.
func SortEvents(events []PoolEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Less(&events[j])
	})
}
