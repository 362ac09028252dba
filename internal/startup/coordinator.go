// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package startup

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/luxfi/poolmirror/internal/config"
	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/pmutil"
	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/processor"
	"github.com/luxfi/poolmirror/internal/registry"
	"github.com/luxfi/poolmirror/internal/scraper"
	"github.com/luxfi/poolmirror/internal/stream"
	"github.com/luxfi/poolmirror/internal/telemetry"
)

// identifierCacheSize bounds the parsed-pool-identifier cache; whitelists
// rarely exceed a few thousand distinct pools across a process's lifetime of
// repeated incremental-add calls.
const identifierCacheSize = 16384

// PoolInfo names a pool to load, as it would appear in a configured
// whitelist: a hex identifier string and its protocol.
type PoolInfo struct {
	ID       string
	Protocol poolstate.Protocol
}

// IsV2 reports whether this pool should go through the fast, reserves-only
// scrape path.
func (p PoolInfo) IsV2() bool { return p.Protocol == poolstate.ProtocolV2 }

// IsV3OrV4 reports whether this pool should go through the slower,
// tick-and-bitmap scrape path.
func (p PoolInfo) IsV3OrV4() bool {
	return p.Protocol == poolstate.ProtocolV3 || p.Protocol == poolstate.ProtocolV4
}

// Coordinator sequences cold-start and incremental-add flows across the
// stream client, scraper, event processor, and arena registry (spec §4.3).
// A Coordinator is not safe for concurrent calls to RunColdStart/
// AddPoolsIncremental from multiple goroutines. It creates and controls the
// stream client (mode switches, buffer draining); once Connected() closes,
// the client's read loop is driven by the caller (see Connected).
type Coordinator struct {
	cfg   *config.Config
	reg   *registry.Registry
	scr   scraper.Scraper
	proc  *processor.EventProcessor
	log   pmlog.Logger
	tel   *telemetry.Metrics
	clock pmutil.Clock

	client *stream.Client

	phase                Phase
	loadedPoolsMu        sync.Mutex
	loadedPools          *pmutil.Set[poolstate.PoolIdentifier]
	scrapeReferenceBlock *uint64
	metrics              *Metrics
	identifierCache      *lru.Cache

	connected chan struct{}
}

// New returns a coordinator in the NotStarted phase. tel may be nil, in
// which case no Prometheus observations are made. clock may be nil, in
// which case the real wall clock is used.
func New(cfg *config.Config, reg *registry.Registry, scr scraper.Scraper, proc *processor.EventProcessor, log pmlog.Logger, tel *telemetry.Metrics, clock pmutil.Clock) *Coordinator {
	cache, _ := lru.New(identifierCacheSize)
	if clock == nil {
		clock = pmutil.RealClock{}
	}
	return &Coordinator{
		cfg:             cfg,
		reg:             reg,
		scr:             scr,
		proc:            proc,
		log:             log,
		tel:             tel,
		clock:           clock,
		phase:           notStarted(),
		loadedPools:     pmutil.NewSet[poolstate.PoolIdentifier](),
		metrics:         newMetrics(clock),
		identifierCache: cache,
		connected:       make(chan struct{}),
	}
}

// Phase returns the coordinator's current startup phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// IsLive reports whether the coordinator has completed startup and is in
// live processing mode.
func (c *Coordinator) IsLive() bool { return c.phase.Kind == PhaseLive }

// Metrics returns the coordinator's accumulated startup metrics.
func (c *Coordinator) Metrics() *Metrics { return c.metrics }

// LoadedPools returns every pool identifier admitted so far, across both
// cold start and any incremental additions (spec §3 invariant 6).
func (c *Coordinator) LoadedPools() []poolstate.PoolIdentifier {
	c.loadedPoolsMu.Lock()
	defer c.loadedPoolsMu.Unlock()
	return c.loadedPools.List()
}

// Connected is closed once the stream socket has been dialed (end of phase
// 1), before scraping begins. The coordinator never reads the socket itself,
// and its only goroutines are the bounded scrape workers started when
// Config.ParallelScraping is set; a composition root that wants to keep the
// socket draining while RunColdStart is busy scraping and replaying waits on
// this channel,
// then drives Client().ReadAndProcess() in its own goroutine. stream.Client
// guards its state with an internal mutex for exactly this reason: a pump
// goroutine owned by the caller and the coordinator's own control calls
// (SetMode, TakeBufferedEvents, BufferStats) are safe to interleave.
func (c *Coordinator) Connected() <-chan struct{} { return c.connected }

// Client returns the underlying stream client, or nil before phase 1 has
// connected. Ownership is shared from the moment Connected() closes: the
// coordinator still makes control calls (SetMode, TakeBufferedEvents) but no
// longer expects to be the only caller touching it.
func (c *Coordinator) Client() *stream.Client {
	return c.client
}

// RunColdStart executes the full four-phase startup sequence: connect the
// socket in buffering mode, scrape the baseline snapshot (V2 pools first,
// then V3/V4), replay events buffered during scraping, then switch to live
// processing.
func (c *Coordinator) RunColdStart(ctx context.Context, whitelist []PoolInfo) (Summary, error) {
	if c.phase.Kind == PhaseLive {
		return Summary{}, ErrAlreadyLive
	}

	c.metrics.markStartupStarted()

	v2Pools, v3v4Pools := categorizePools(whitelist)
	c.log.Info("starting cold start", "v2_pools", len(v2Pools), "v3_v4_pools", len(v3v4Pools))

	if err := c.phase1ConnectSocket(c.cfg.BufferCapacity); err != nil {
		return Summary{}, err
	}
	if err := c.phase2ScrapePools(ctx, v2Pools, v3v4Pools); err != nil {
		return Summary{}, err
	}
	if err := c.phase3ReplayEvents(); err != nil {
		return Summary{}, err
	}
	if err := c.phase4GoLive(); err != nil {
		return Summary{}, err
	}

	c.metrics.markTotalDuration()
	summary := summaryFromMetrics(c.metrics)
	c.log.Info("cold start complete", "summary", summary.String())
	return summary, nil
}

// AddPoolsIncremental adds new pools to an already-live registry without
// tearing down the live connection: it temporarily switches the client back
// to buffering mode, scrapes the new pools, replays anything buffered during
// that window, then switches back to live.
func (c *Coordinator) AddPoolsIncremental(ctx context.Context, newPools []PoolInfo) (Summary, error) {
	if c.phase.Kind != PhaseLive {
		return Summary{}, ErrNotLive
	}

	c.log.Info("adding pools incrementally", "count", len(newPools))
	incMetrics := newMetrics(c.clock)
	incMetrics.markStartupStarted()

	v2Pools, v3v4Pools := categorizePools(newPools)

	c.client.SetMode(stream.Buffering(c.cfg.IncrementalCapacity))

	referenceBlock, err := c.getCurrentBlock(ctx)
	if err != nil {
		return Summary{}, err
	}
	c.log.Info("using reference block for incremental additions", "block", referenceBlock)

	if err := c.scrapeGroup(ctx, v2Pools, incMetrics, true); err != nil {
		return Summary{}, err
	}
	if err := c.scrapeGroup(ctx, v3v4Pools, incMetrics, false); err != nil {
		return Summary{}, err
	}

	buffered := c.client.TakeBufferedEvents()
	replay := filterAfterBlock(buffered, referenceBlock)
	incMetrics.EventsBuffered = len(buffered)
	c.log.Info("replaying buffered events after incremental scraping", "count", len(replay))

	incMetrics.markReplayStarted()
	incMetrics.EventsReplayed = c.replayEvents(replay)
	incMetrics.markReplayCompleted()

	c.client.SetMode(stream.Live())

	incMetrics.markTotalDuration()
	summary := summaryFromMetrics(incMetrics)
	c.log.Info("incremental addition complete", "summary", summary.String())
	return summary, nil
}

func categorizePools(pools []PoolInfo) (v2, v3v4 []PoolInfo) {
	for _, p := range pools {
		if p.IsV2() {
			v2 = append(v2, p)
		} else {
			v3v4 = append(v3v4, p)
		}
	}
	return v2, v3v4
}

// phase1ConnectSocket connects the stream client in buffering mode with the
// given capacity.
func (c *Coordinator) phase1ConnectSocket(bufferCapacity int) error {
	c.phase = connectingSocket()
	c.log.Info("phase 1: connecting to stream socket in buffering mode", "socket", c.cfg.SocketPath)

	client := stream.New(c.cfg.SocketPath, stream.Buffering(bufferCapacity), c.log).
		WithRetry(c.cfg.RetryMaxAttempts, c.cfg.RetryInitialDelay, c.cfg.RetryMaxDelay)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrSocketClient, err)
	}
	c.client = client
	c.metrics.markSocketConnected()
	close(c.connected)
	c.log.Info("phase 1 complete: socket connected")
	return nil
}

// Close tears down the stream connection, if one was ever established. Safe
// to call even if RunColdStart was never invoked.
func (c *Coordinator) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect()
}

// phase2ScrapePools scrapes v2 pools (fast), records the reference block,
// then scrapes v3/v4 pools (slow).
func (c *Coordinator) phase2ScrapePools(ctx context.Context, v2Pools, v3v4Pools []PoolInfo) error {
	c.log.Info("phase 2: scraping baseline pool state", "v2", len(v2Pools), "v3_v4", len(v3v4Pools))
	c.metrics.markScrapingStarted()
	c.phase = scrapingPools(0, len(v2Pools), 0, len(v3v4Pools))

	if len(v2Pools) > 0 {
		v2Start := c.clock.Now()
		if err := c.scrapeGroup(ctx, v2Pools, c.metrics, true); err != nil {
			return err
		}
		c.metrics.markV2ScrapingDuration(v2Start)
		c.phase = scrapingPools(len(v2Pools), len(v2Pools), 0, len(v3v4Pools))

		ref, err := c.getCurrentBlock(ctx)
		if err != nil {
			return err
		}
		c.scrapeReferenceBlock = &ref
	}

	if len(v3v4Pools) > 0 {
		v3v4Start := c.clock.Now()
		if err := c.scrapeGroup(ctx, v3v4Pools, c.metrics, false); err != nil {
			return err
		}
		c.metrics.markV3V4ScrapingDuration(v3v4Start)
		c.phase = scrapingPools(len(v2Pools), len(v2Pools), len(v3v4Pools), len(v3v4Pools))

		if c.scrapeReferenceBlock == nil {
			ref, err := c.getCurrentBlock(ctx)
			if err != nil {
				return err
			}
			c.scrapeReferenceBlock = &ref
		}
	}

	c.metrics.markScrapingCompleted()
	stats := c.client.BufferStats()
	c.metrics.EventsBuffered = stats.BufferedCount
	c.log.Info("phase 2 complete",
		"v2_scraped", c.metrics.V2PoolsScraped, "v3_v4_scraped", c.metrics.V3V4PoolsScraped,
		"failed", c.metrics.PoolsFailed, "buffered_events", stats.BufferedCount)
	return nil
}

// phase3ReplayEvents drains the client's buffer, drops events already
// reflected in the baseline scrape, and applies the remainder in order.
func (c *Coordinator) phase3ReplayEvents() error {
	c.log.Info("phase 3: replaying buffered events")
	c.metrics.markReplayStarted()

	buffered := c.client.TakeBufferedEvents()
	c.metrics.EventsBuffered = len(buffered)

	referenceBlock := uint64(0)
	if c.scrapeReferenceBlock != nil {
		referenceBlock = *c.scrapeReferenceBlock
	}
	replay := filterAfterBlock(buffered, referenceBlock)
	c.log.Info("filtered buffered events", "retrieved", len(buffered), "after_reference", len(replay), "reference_block", referenceBlock)

	c.phase = replayingEvents(0, len(replay))
	c.metrics.EventsReplayed = c.replayEventsWithProgress(replay)

	c.metrics.markReplayCompleted()
	c.log.Info("phase 3 complete", "replayed", c.metrics.EventsReplayed)
	return nil
}

// phase4GoLive switches the client to live mode and marks the coordinator
// as live.
func (c *Coordinator) phase4GoLive() error {
	c.log.Info("phase 4: switching to live processing mode")
	c.client.SetMode(stream.Live())
	c.phase = live()
	c.metrics.markLiveModeStarted()
	c.log.Info("phase 4 complete: now live")
	return nil
}

// replayEvents applies events in order, logging but not failing on
// individual errors, returning the count successfully applied.
func (c *Coordinator) replayEvents(events []poolstate.PoolEvent) int {
	applied := 0
	for i := range events {
		if err := c.proc.ProcessEvent(&events[i]); err != nil {
			c.log.Error("failed to apply buffered event", "err", err)
			continue
		}
		applied++
	}
	return applied
}

// replayEventsWithProgress is replayEvents plus coarse phase progress
// updates, matching the cold-start phase's progress-counter contract.
func (c *Coordinator) replayEventsWithProgress(events []poolstate.PoolEvent) int {
	applied := 0
	for i := range events {
		if err := c.proc.ProcessEvent(&events[i]); err != nil {
			c.log.Error("failed to apply buffered event", "err", err)
		} else {
			applied++
		}
		if (i+1)%1000 == 0 {
			c.phase = replayingEvents(i+1, len(events))
		}
	}
	return applied
}

func filterAfterBlock(events []poolstate.PoolEvent, referenceBlock uint64) []poolstate.PoolEvent {
	out := make([]poolstate.PoolEvent, 0, len(events))
	for _, e := range events {
		if e.BlockNumber > referenceBlock {
			out = append(out, e)
		}
	}
	return out
}

// scrapeGroup scrapes every pool in pools and admits it to the registry,
// incrementing m's V2PoolsScraped/V3V4PoolsScraped/PoolsFailed counters.
// When c.cfg.ParallelScraping is set, pools are scraped concurrently up to
// c.cfg.ScrapingConcurrency in flight at once (bounded by a weighted
// semaphore); otherwise they are scraped one at a time, matching the
// sequential discipline spec §4.3 describes.
func (c *Coordinator) scrapeGroup(ctx context.Context, pools []PoolInfo, m *Metrics, isV2 bool) error {
	if !c.cfg.ParallelScraping || c.cfg.ScrapingConcurrency <= 1 {
		for _, p := range pools {
			c.scrapeAndAddOne(ctx, p, m, isV2)
		}
		return nil
	}

	var (
		statsMu sync.Mutex
		sem     = semaphore.NewWeighted(int64(c.cfg.ScrapingConcurrency))
		grp     errgroup.Group
	)
	for _, p := range pools {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: %v", ErrScraper, err)
		}
		grp.Go(func() error {
			defer sem.Release(1)
			// The scrape itself (network/IO-bound) runs unlocked; only the
			// shared counters and loaded-pools set need serialized access.
			err := c.scrapeAndAddPool(ctx, p)
			statsMu.Lock()
			c.recordScrapeOutcome(p, m, isV2, err)
			statsMu.Unlock()
			return nil
		})
	}
	return grp.Wait()
}

// scrapeAndAddOne scrapes a single pool and admits it, recording success or
// failure in m. Errors are logged and counted, never propagated, matching
// spec §4.3's "failures increment pools_failed and do not abort".
func (c *Coordinator) scrapeAndAddOne(ctx context.Context, info PoolInfo, m *Metrics, isV2 bool) {
	err := c.scrapeAndAddPool(ctx, info)
	c.recordScrapeOutcome(info, m, isV2, err)
}

func (c *Coordinator) recordScrapeOutcome(info PoolInfo, m *Metrics, isV2 bool, err error) {
	if err != nil {
		c.log.Error("failed to scrape pool", "id", info.ID, "protocol", info.Protocol, "err", err)
		m.PoolsFailed++
		if c.tel != nil {
			c.tel.PoolsScrapeFailed.Inc()
		}
		return
	}
	if isV2 {
		m.V2PoolsScraped++
	} else {
		m.V3V4PoolsScraped++
	}
}

// scrapeAndAddPool parses info's identifier, scrapes its baseline state, and
// admits it to the registry, tracking it in loadedPools.
func (c *Coordinator) scrapeAndAddPool(ctx context.Context, info PoolInfo) error {
	identifier, err := c.parseIdentifier(info)
	if err != nil {
		return err
	}

	raw, err := c.scr.ScrapePool(ctx, identifier, info.Protocol)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScraper, err)
	}
	raw.Identifier = identifier
	if raw.Protocol == "" {
		raw.Protocol = info.Protocol
	}

	if _, err := admitScrapedPool(c.reg, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrArenaRegistry, err)
	}

	c.loadedPoolsMu.Lock()
	c.loadedPools.Add(identifier)
	c.loadedPoolsMu.Unlock()
	return nil
}

type identifierCacheKey struct {
	id       string
	protocol poolstate.Protocol
}

// parseIdentifier parses info.ID against info.Protocol, caching results
// since a whitelist is often re-submitted across repeated incremental-add
// calls.
func (c *Coordinator) parseIdentifier(info PoolInfo) (poolstate.PoolIdentifier, error) {
	key := identifierCacheKey{id: info.ID, protocol: info.Protocol}
	if c.identifierCache != nil {
		if cached, ok := c.identifierCache.Get(key); ok {
			return cached.(poolstate.PoolIdentifier), nil
		}
	}

	identifier, err := poolstate.ParsePoolIdentifier(info.ID, info.Protocol)
	if err != nil {
		return poolstate.PoolIdentifier{}, fmt.Errorf("%w: %v", ErrPoolFactory, err)
	}
	if c.identifierCache != nil {
		c.identifierCache.Add(key, identifier)
	}
	return identifier, nil
}

// getCurrentBlock queries the scraper's current block number (spec §9 Open
// Question 3).
func (c *Coordinator) getCurrentBlock(ctx context.Context) (uint64, error) {
	block, err := c.scr.CurrentBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScraper, err)
	}
	return block, nil
}
