// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package startup

import (
	"time"

	"github.com/luxfi/poolmirror/internal/pmutil"
)

// Metrics collects phase-boundary marks and outcome counters for a single
// RunColdStart or AddPoolsIncremental invocation (spec §4.3 Metrics). Marks
// are read through a pmutil.Clock so tests can pin timestamps deterministically.
type Metrics struct {
	clock pmutil.Clock

	StartupStartedAt    time.Time
	SocketConnectedAt   time.Time
	ScrapingStartedAt   time.Time
	ScrapingCompletedAt time.Time
	ReplayStartedAt     time.Time
	ReplayCompletedAt   time.Time
	LiveModeStartedAt   time.Time

	V2PoolsScraped   int
	V3V4PoolsScraped int
	PoolsFailed      int
	EventsBuffered   int
	EventsReplayed   int

	V2ScrapingDuration   time.Duration
	V3V4ScrapingDuration time.Duration
	ReplayDuration       time.Duration
	TotalDuration        time.Duration
}

func newMetrics(clock pmutil.Clock) *Metrics {
	if clock == nil {
		clock = pmutil.RealClock{}
	}
	return &Metrics{clock: clock}
}

func (m *Metrics) markStartupStarted()  { m.StartupStartedAt = m.clock.Now() }
func (m *Metrics) markSocketConnected() { m.SocketConnectedAt = m.clock.Now() }
func (m *Metrics) markScrapingStarted() { m.ScrapingStartedAt = m.clock.Now() }
func (m *Metrics) markReplayStarted()   { m.ReplayStartedAt = m.clock.Now() }
func (m *Metrics) markLiveModeStarted() { m.LiveModeStartedAt = m.clock.Now() }

func (m *Metrics) markScrapingCompleted() {
	m.ScrapingCompletedAt = m.clock.Now()
}

func (m *Metrics) markReplayCompleted() {
	m.ReplayCompletedAt = m.clock.Now()
	if !m.ReplayStartedAt.IsZero() {
		m.ReplayDuration = m.ReplayCompletedAt.Sub(m.ReplayStartedAt)
	}
}

func (m *Metrics) markV2ScrapingDuration(start time.Time) {
	m.V2ScrapingDuration = m.clock.Now().Sub(start)
}

func (m *Metrics) markV3V4ScrapingDuration(start time.Time) {
	m.V3V4ScrapingDuration = m.clock.Now().Sub(start)
}

func (m *Metrics) markTotalDuration() {
	if !m.StartupStartedAt.IsZero() {
		m.TotalDuration = m.clock.Now().Sub(m.StartupStartedAt)
	}
}
