// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"errors"
	"fmt"

	"github.com/luxfi/poolmirror/internal/poolstate"
)

var (
	// ErrUnsupportedProtocol is returned when an event names a protocol the
	// processor has no dispatch route for.
	ErrUnsupportedProtocol = errors.New("processor: unsupported protocol")

	// ErrUnsupportedEventType is returned when an event names an event type
	// that is not recognized for its protocol.
	ErrUnsupportedEventType = errors.New("processor: unsupported event type")

	// ErrInvalidEventData is returned when a required optional field is
	// absent from the event for the dispatch it is routed to.
	ErrInvalidEventData = errors.New("processor: invalid event data")

	// ErrArenaRegistry wraps a failure surfaced by the registry during
	// mutation (e.g. a resolved PoolLocation that no longer resolves).
	ErrArenaRegistry = errors.New("processor: arena registry error")

	// ErrArithmeticOverflow is returned when applying a liquidity delta
	// would overflow or underflow the signed 128-bit accumulator.
	ErrArithmeticOverflow = errors.New("processor: arithmetic overflow")
)

// PoolNotFoundError reports that the event's pool identifier does not
// resolve to any admitted pool.
type PoolNotFoundError struct {
	Identifier poolstate.PoolIdentifier
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("processor: pool not found: %s", e.Identifier)
}

// Is reports whether target is the PoolNotFound sentinel class, so callers
// can use errors.Is(err, ErrPoolNotFound) without caring about the carried
// identifier.
func (e *PoolNotFoundError) Is(target error) bool {
	return target == ErrPoolNotFound
}

// ErrPoolNotFound is the sentinel class matched by PoolNotFoundError.Is.
var ErrPoolNotFound = errors.New("processor: pool not found")
