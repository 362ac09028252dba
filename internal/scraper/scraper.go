// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scraper defines the baseline-state scraper contract the startup
// coordinator consumes. The scraper itself — and whatever persistent store
// sits behind it — is an out-of-scope external collaborator (spec §1); this
// package only pins the interface shape and a test double.
package scraper

import (
	"context"

	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/registry"
)

// Scraper produces a coherent baseline snapshot for a single pool, pinned to
// some block, and reports the chain's current block number for establishing
// a replay cut.
type Scraper interface {
	ScrapePool(ctx context.Context, id poolstate.PoolIdentifier, protocol poolstate.Protocol) (registry.RawPoolState, error)
	CurrentBlock(ctx context.Context) (uint64, error)
}
