// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry implements the tiered pool arena registry the event
// processor and startup coordinator mutate. Per SPEC_FULL.md §4.4, the
// arena tier implementations' own internal tick/bitmap capacity tuning is an
// out-of-scope external collaborator; this package still needs a concrete,
// tier-homogeneous registry to exercise the rest of the pipeline.
package registry

// Tier sizes a V3/V4 pool's tick-array capacity class by tick cardinality.
type Tier uint8

const (
	TierLow Tier = iota
	TierActive
	TierPopular
	TierMajor
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierActive:
		return "active"
	case TierPopular:
		return "popular"
	case TierMajor:
		return "major"
	default:
		return "unknown"
	}
}

// Tier thresholds are an implementation choice left open by the spec (tier
// capacity tuning is explicitly out of scope); these values are a reasonable
// default, pinned by tests, not a re-derivation of any specific deployment's
// tuning.
const (
	activeTickThreshold  = 50
	popularTickThreshold = 500
	majorTickThreshold   = 5000
)

// DetermineTier classifies a scraped pool into a capacity tier from its tick
// and bitmap-word cardinality.
func DetermineTier(tickCount, bitmapCount int) Tier {
	cardinality := tickCount
	if bitmapCount > cardinality {
		cardinality = bitmapCount
	}
	switch {
	case cardinality >= majorTickThreshold:
		return TierMajor
	case cardinality >= popularTickThreshold:
		return TierPopular
	case cardinality >= activeTickThreshold:
		return TierActive
	default:
		return TierLow
	}
}
