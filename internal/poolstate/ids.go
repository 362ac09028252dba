// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poolstate defines the wire and in-memory data model shared by the
// stream client, event processor, and startup coordinator: pool identifiers,
// protocol/event tags, and the pool mutation events that flow off the socket.
package poolstate

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Protocol identifies an AMM generation.
type Protocol string

const (
	ProtocolV2 Protocol = "uniswap_v2"
	ProtocolV3 Protocol = "uniswap_v3"
	ProtocolV4 Protocol = "uniswap_v4"
)

// EventType identifies the kind of mutation a PoolEvent carries.
type EventType string

const (
	EventSwap            EventType = "Swap"
	EventMint            EventType = "Mint"
	EventBurn            EventType = "Burn"
	EventModifyLiquidity EventType = "ModifyLiquidity"
)

// IdentifierKind distinguishes the two address shapes a pool can have.
type IdentifierKind uint8

const (
	KindAddress IdentifierKind = iota // V2/V3: 20-byte contract address
	KindPoolID                        // V4: 32-byte pool id (singleton hook pool)
)

// PoolIdentifier is a tagged, fixed-size pool handle. It is a plain value
// (not an interface) so it can be used directly as a map key.
type PoolIdentifier struct {
	Kind    IdentifierKind
	Address [20]byte
	PoolID  [32]byte
}

// NewAddressIdentifier builds a V2/V3-style identifier from a 20-byte address.
func NewAddressIdentifier(addr [20]byte) PoolIdentifier {
	return PoolIdentifier{Kind: KindAddress, Address: addr}
}

// NewPoolIDIdentifier builds a V4-style identifier from a 32-byte pool id.
func NewPoolIDIdentifier(id [32]byte) PoolIdentifier {
	return PoolIdentifier{Kind: KindPoolID, PoolID: id}
}

func (p PoolIdentifier) String() string {
	switch p.Kind {
	case KindAddress:
		return "0x" + hex.EncodeToString(p.Address[:])
	case KindPoolID:
		return "0x" + hex.EncodeToString(p.PoolID[:])
	default:
		return "<unknown-identifier>"
	}
}

// ParsePoolIdentifier decodes a hex string (optionally "0x"-prefixed) into a
// PoolIdentifier whose shape is determined by protocol: uniswap_v2/v3 expect
// a 20-byte address, uniswap_v4 expects a 32-byte pool id. Any other length,
// invalid hex, or unknown protocol is a PoolFactory-class error for callers.
func ParsePoolIdentifier(idStr string, protocol Protocol) (PoolIdentifier, error) {
	hexStr := strings.TrimPrefix(idStr, "0x")

	switch protocol {
	case ProtocolV2, ProtocolV3:
		if len(hexStr) != 40 {
			return PoolIdentifier{}, fmt.Errorf("%w: expected 40 hex chars for address, got %d", ErrInvalidIdentifier, len(hexStr))
		}
		var addr [20]byte
		if _, err := hex.Decode(addr[:], []byte(hexStr)); err != nil {
			return PoolIdentifier{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		return NewAddressIdentifier(addr), nil
	case ProtocolV4:
		if len(hexStr) != 64 {
			return PoolIdentifier{}, fmt.Errorf("%w: expected 64 hex chars for pool id, got %d", ErrInvalidIdentifier, len(hexStr))
		}
		var id [32]byte
		if _, err := hex.Decode(id[:], []byte(hexStr)); err != nil {
			return PoolIdentifier{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		return NewPoolIDIdentifier(id), nil
	default:
		return PoolIdentifier{}, fmt.Errorf("%w: unknown protocol %q", ErrInvalidIdentifier, protocol)
	}
}
