// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package startup

import "fmt"

// Summary is a user-visible record of a completed RunColdStart or
// AddPoolsIncremental call: counts, durations, and failed pools, per
// SPEC_FULL.md's "structured startup summary" supplemented feature.
type Summary struct {
	V2PoolsScraped   int
	V3V4PoolsScraped int
	PoolsFailed      int
	EventsBuffered   int
	EventsReplayed   int

	V2ScrapingDurationMS   int64
	V3V4ScrapingDurationMS int64
	ReplayDurationMS       int64
	TotalDurationMS        int64
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"pools: %d v2 + %d v3/v4 scraped, %d failed; events: %d buffered, %d replayed; "+
			"durations: v2=%dms v3_v4=%dms replay=%dms total=%dms",
		s.V2PoolsScraped, s.V3V4PoolsScraped, s.PoolsFailed,
		s.EventsBuffered, s.EventsReplayed,
		s.V2ScrapingDurationMS, s.V3V4ScrapingDurationMS, s.ReplayDurationMS, s.TotalDurationMS,
	)
}

func summaryFromMetrics(m *Metrics) Summary {
	return Summary{
		V2PoolsScraped:         m.V2PoolsScraped,
		V3V4PoolsScraped:       m.V3V4PoolsScraped,
		PoolsFailed:            m.PoolsFailed,
		EventsBuffered:         m.EventsBuffered,
		EventsReplayed:         m.EventsReplayed,
		V2ScrapingDurationMS:   m.V2ScrapingDuration.Milliseconds(),
		V3V4ScrapingDurationMS: m.V3V4ScrapingDuration.Milliseconds(),
		ReplayDurationMS:       m.ReplayDuration.Milliseconds(),
		TotalDurationMS:        m.TotalDuration.Milliseconds(),
	}
}
