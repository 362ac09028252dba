// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package scraper

import (
	"context"
	"fmt"

	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/registry"
)

// Static is a Scraper test double returning canned responses keyed by
// identifier. It never talks to a real persistent store; it exists to
// exercise the startup coordinator without one.
type Static struct {
	Pools   map[poolstate.PoolIdentifier]registry.RawPoolState
	Block   uint64
	Failing map[poolstate.PoolIdentifier]error
}

// NewStatic returns an empty static scraper pinned to the given current
// block.
func NewStatic(block uint64) *Static {
	return &Static{
		Pools:   make(map[poolstate.PoolIdentifier]registry.RawPoolState),
		Block:   block,
		Failing: make(map[poolstate.PoolIdentifier]error),
	}
}

// WithPool registers a canned snapshot for id.
func (s *Static) WithPool(id poolstate.PoolIdentifier, state registry.RawPoolState) *Static {
	s.Pools[id] = state
	return s
}

// WithFailure makes ScrapePool(id) return err instead of a snapshot.
func (s *Static) WithFailure(id poolstate.PoolIdentifier, err error) *Static {
	s.Failing[id] = err
	return s
}

func (s *Static) ScrapePool(_ context.Context, id poolstate.PoolIdentifier, protocol poolstate.Protocol) (registry.RawPoolState, error) {
	if err, ok := s.Failing[id]; ok {
		return registry.RawPoolState{}, err
	}
	state, ok := s.Pools[id]
	if !ok {
		return registry.RawPoolState{}, fmt.Errorf("scraper: no canned snapshot for %s", id)
	}
	if state.Protocol == "" {
		state.Protocol = protocol
	}
	return state, nil
}

func (s *Static) CurrentBlock(_ context.Context) (uint64, error) {
	return s.Block, nil
}
