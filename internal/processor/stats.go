// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

// Stats tallies per-category event counts, mirroring the dispatch table in
// SPEC_FULL.md §4.2. All fields are accessed only while the owning
// EventProcessor's caller holds exclusive access to it (the processor is not
// itself internally synchronized — spec §5 treats it as owned by a single
// caller, same as the stream client).
type Stats struct {
	V2SwapsProcessed uint64
	V2MintsProcessed uint64
	V2BurnsProcessed uint64

	V3SwapsProcessed uint64
	V3MintsProcessed uint64
	V3BurnsProcessed uint64

	V4SwapsProcessed           uint64
	V4ModifyLiquidityProcessed uint64

	RevertsProcessed uint64
	Errors           uint64
}
