// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package startup

import "errors"

var (
	// ErrAlreadyLive is returned by RunColdStart when the coordinator has
	// already reached the Live phase; use AddPoolsIncremental instead.
	ErrAlreadyLive = errors.New("startup: already in live mode, use AddPoolsIncremental")

	// ErrNotLive is returned by AddPoolsIncremental before cold start has
	// completed.
	ErrNotLive = errors.New("startup: not in live mode, run RunColdStart first")

	// ErrSocketClient wraps a failure surfaced by the stream client while
	// connecting in phase 1.
	ErrSocketClient = errors.New("startup: socket client error")

	// ErrScraper wraps a failure surfaced by the scraper during baseline
	// scraping.
	ErrScraper = errors.New("startup: scraper error")

	// ErrArenaRegistry wraps a failure admitting a scraped pool into the
	// registry.
	ErrArenaRegistry = errors.New("startup: arena registry error")

	// ErrPoolFactory wraps a failure converting a scraper snapshot into a
	// registry pool, including pool-identifier parse failures.
	ErrPoolFactory = errors.New("startup: pool factory error")
)
