// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package startup sequences the cold-start and incremental-add flows across
// the stream client, scraper, and arena registry, per SPEC_FULL.md §4.3.
package startup

// Phase is the startup coordinator's tagged progress state. Only one variant
// is ever "active" for the fields it carries; ScrapingPools/ReplayingEvents
// ignore each other's fields while active.
type Phase struct {
	Kind PhaseKind

	V2Completed   int
	V2Total       int
	V3V4Completed int
	V3V4Total     int

	EventsCompleted int
	EventsTotal     int
}

// PhaseKind discriminates Phase's variant.
type PhaseKind uint8

const (
	PhaseNotStarted PhaseKind = iota
	PhaseConnectingSocket
	PhaseScrapingPools
	PhaseReplayingEvents
	PhaseLive
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseConnectingSocket:
		return "ConnectingSocket"
	case PhaseScrapingPools:
		return "ScrapingPools"
	case PhaseReplayingEvents:
		return "ReplayingEvents"
	case PhaseLive:
		return "Live"
	default:
		return "Unknown"
	}
}

func notStarted() Phase       { return Phase{Kind: PhaseNotStarted} }
func connectingSocket() Phase { return Phase{Kind: PhaseConnectingSocket} }
func live() Phase             { return Phase{Kind: PhaseLive} }

func scrapingPools(v2Completed, v2Total, v3v4Completed, v3v4Total int) Phase {
	return Phase{
		Kind:          PhaseScrapingPools,
		V2Completed:   v2Completed,
		V2Total:       v2Total,
		V3V4Completed: v3v4Completed,
		V3V4Total:     v3v4Total,
	}
}

func replayingEvents(completed, total int) Phase {
	return Phase{Kind: PhaseReplayingEvents, EventsCompleted: completed, EventsTotal: total}
}
