// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// poolmirror is a standalone pool-state mirror: it runs the four-phase cold
// start against a configured stream socket and scraper, then stays live,
// applying incoming events to the in-memory arena registry.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/poolmirror/internal/config"
	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/poolstate"
	"github.com/luxfi/poolmirror/internal/processor"
	"github.com/luxfi/poolmirror/internal/registry"
	"github.com/luxfi/poolmirror/internal/scraper"
	"github.com/luxfi/poolmirror/internal/startup"
	"github.com/luxfi/poolmirror/internal/telemetry"
)

const clientIdentifier = "poolmirror"

// configFlags mirrors internal/config's key/default table as urfave/cli
// flags, so the composition root's --help output matches internal/config's
// own BuildFlagSet used by tests and embedders composing their own binary.
var configFlags = []cli.Flag{
	&cli.StringFlag{Name: config.SocketPathKey, Value: config.DefaultSocketPath, Usage: "path to the upstream stream socket"},
	&cli.IntFlag{Name: config.BufferCapacityKey, Value: config.DefaultBufferCapacity, Usage: "cold-start event buffer capacity"},
	&cli.IntFlag{Name: config.IncrementalCapacityKey, Value: config.DefaultIncrementalCapacity, Usage: "incremental-add event buffer capacity"},
	&cli.IntFlag{Name: config.V2ScrapeBatchSizeKey, Value: config.DefaultV2ScrapeBatchSize, Usage: "v2 baseline scrape batch size"},
	&cli.IntFlag{Name: config.V3V4ScrapeBatchSizeKey, Value: config.DefaultV3V4ScrapeBatchSize, Usage: "v3/v4 baseline scrape batch size"},
	&cli.IntFlag{Name: config.ScrapingConcurrencyKey, Value: config.DefaultScrapingConcurrency, Usage: "scrape fan-out width when parallel scraping is enabled"},
	&cli.BoolFlag{Name: config.ParallelScrapingKey, Value: config.DefaultParallelScraping, Usage: "scrape pools concurrently instead of one at a time"},
	&cli.IntFlag{Name: config.RetryMaxAttemptsKey, Value: config.DefaultRetryMaxAttempts, Usage: "max connect retry attempts"},
	&cli.DurationFlag{Name: config.RetryInitialDelayKey, Value: config.DefaultRetryInitialDelay, Usage: "initial connect retry delay"},
	&cli.DurationFlag{Name: config.RetryMaxDelayKey, Value: config.DefaultRetryMaxDelay, Usage: "max connect retry delay (exponential backoff cap)"},
	&cli.StringFlag{Name: config.LogLevelKey, Value: config.DefaultLogLevel, Usage: "log level: trace, debug, info, warn, error"},
	&cli.StringFlag{Name: config.MetricsAddrKey, Value: config.DefaultMetricsAddr, Usage: "prometheus metrics listen address"},
}

var whitelistFlag = &cli.StringFlag{
	Name:     "whitelist",
	Usage:    `path to a JSON file listing pools to mirror: [{"id":"0x...","protocol":"uniswap_v2","reserve0":"1000","reserve1":"2000",...}, ...]`,
	Required: true,
}

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "AMM pool-state mirror: cold start against a stream socket, then live updates",
	Version: "1.0.0",
	Flags:   append(configFlags, whitelistFlag),
}

func init() {
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFromFlags builds a Config directly from the parsed cli.Context,
// rather than round-tripping through config.BuildViper (which parses its
// own pflag.FlagSet against raw args); urfave/cli already owns argument
// parsing here, so this reads the values it resolved.
func configFromFlags(c *cli.Context) *config.Config {
	return &config.Config{
		SocketPath:          c.String(config.SocketPathKey),
		BufferCapacity:      c.Int(config.BufferCapacityKey),
		IncrementalCapacity: c.Int(config.IncrementalCapacityKey),
		V2ScrapeBatchSize:   c.Int(config.V2ScrapeBatchSizeKey),
		V3V4ScrapeBatchSize: c.Int(config.V3V4ScrapeBatchSizeKey),
		ScrapingConcurrency: c.Int(config.ScrapingConcurrencyKey),
		ParallelScraping:    c.Bool(config.ParallelScrapingKey),
		RetryMaxAttempts:    c.Int(config.RetryMaxAttemptsKey),
		RetryInitialDelay:   c.Duration(config.RetryInitialDelayKey),
		RetryMaxDelay:       c.Duration(config.RetryMaxDelayKey),
		LogLevel:            c.String(config.LogLevelKey),
		MetricsAddr:         c.String(config.MetricsAddrKey),
	}
}

// whitelistEntry is both a pool to load and, for anything it sets beyond id/
// protocol, a canned baseline snapshot: this repository's scraper is a
// minimal concrete stand-in (spec §1), so the whitelist file doubles as its
// seed data rather than requiring a separate upstream store to talk to.
type whitelistEntry struct {
	ID       string             `json:"id"`
	Protocol poolstate.Protocol `json:"protocol"`

	Token0   string `json:"token0"`
	Token1   string `json:"token1"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`

	Tick         int32  `json:"tick"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`

	CurrentBlock uint64 `json:"current_block"`
}

// loadWhitelist reads the whitelist file and returns both the pool list the
// coordinator's cold start walks, and a scraper seeded with whatever
// baseline fields each entry supplied.
func loadWhitelist(path string) ([]startup.PoolInfo, *scraper.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("poolmirror: reading whitelist: %w", err)
	}
	var entries []whitelistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("poolmirror: parsing whitelist: %w", err)
	}

	var currentBlock uint64
	pools := make([]startup.PoolInfo, len(entries))
	scr := scraper.NewStatic(0)
	for i, e := range entries {
		pools[i] = startup.PoolInfo{ID: e.ID, Protocol: e.Protocol}
		if e.CurrentBlock > currentBlock {
			currentBlock = e.CurrentBlock
		}

		id, err := poolstate.ParsePoolIdentifier(e.ID, e.Protocol)
		if err != nil {
			return nil, nil, fmt.Errorf("poolmirror: whitelist entry %d: %w", i, err)
		}
		raw, err := entrySnapshot(e)
		if err != nil {
			return nil, nil, fmt.Errorf("poolmirror: whitelist entry %d: %w", i, err)
		}
		scr.WithPool(id, raw)
	}
	scr.Block = currentBlock
	return pools, scr, nil
}

func run(cliCtx *cli.Context) error {
	cfg := configFromFlags(cliCtx)

	log, err := pmlog.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("poolmirror: %w", err)
	}

	pools, scr, err := loadWhitelist(cliCtx.String("whitelist"))
	if err != nil {
		return err
	}

	reg := registry.New()
	proc := processor.New(reg, log)

	promReg := prometheus.NewRegistry()
	tel := telemetry.New(promReg)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "err", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord := startup.New(cfg, reg, scr, proc, log, tel, nil)
	defer coord.Close()

	// The coordinator never reads the socket itself; this
	// composition root is the caller responsible for draining the socket
	// once it connects, concurrently with the coordinator's own scraping
	// and replay work.
	pumpErr := make(chan error, 1)
	go func() {
		select {
		case <-coord.Connected():
		case <-ctx.Done():
			return
		}
		for {
			events, err := coord.Client().ReadAndProcess()
			if err != nil {
				pumpErr <- err
				return
			}
			if len(events) == 0 {
				continue
			}
			for _, procErr := range proc.ProcessBatch(events) {
				tel.ProcessorErrors.Inc()
				log.Error("event processing failed", "err", procErr)
			}
			for _, evt := range events {
				tel.EventsProcessed.WithLabelValues(string(evt.Protocol), string(evt.EventType)).Inc()
			}
		}
	}()

	summary, err := coord.RunColdStart(ctx, pools)
	if err != nil {
		return fmt.Errorf("poolmirror: cold start: %w", err)
	}
	log.Info("cold start complete", "summary", summary.String())
	fmt.Println(summary.String())

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-pumpErr:
		log.Error("stream pump stopped", "err", err)
	}
	return metricsSrv.Close()
}

// entrySnapshot converts a whitelist entry's optional baseline fields into
// the RawPoolState the coordinator's pool factory expects. Empty fields
// default to zero rather than failing, since a whitelist entry may only be
// seeding the pool's existence ahead of live events.
func entrySnapshot(e whitelistEntry) (registry.RawPoolState, error) {
	token0, err := parseAddress(e.Token0)
	if err != nil {
		return registry.RawPoolState{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := parseAddress(e.Token1)
	if err != nil {
		return registry.RawPoolState{}, fmt.Errorf("token1: %w", err)
	}

	return registry.RawPoolState{
		Protocol:     e.Protocol,
		Token0:       token0,
		Token1:       token1,
		Reserve0:     parseBigIntOrZero(e.Reserve0),
		Reserve1:     parseBigIntOrZero(e.Reserve1),
		Tick:         e.Tick,
		SqrtPriceX96: parseUint256OrNil(e.SqrtPriceX96),
		Liquidity:    parseUint256OrNil(e.Liquidity),
		Ticks:        map[int32]*big.Int{},
	}, nil
}

// parseAddress decodes a 20-byte hex address, optionally "0x"-prefixed. An
// empty string yields the zero address, since a whitelist entry's tokens are
// informational and not required for admission.
func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	hexStr := strings.TrimPrefix(s, "0x")
	if hexStr == "" {
		return addr, nil
	}
	if len(hexStr) != 40 {
		return addr, fmt.Errorf("expected 40 hex chars, got %d", len(hexStr))
	}
	if _, err := hex.Decode(addr[:], []byte(hexStr)); err != nil {
		return addr, err
	}
	return addr, nil
}

// parseBigIntOrZero parses a decimal string into a *big.Int, defaulting to
// zero for an empty field.
func parseBigIntOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

// parseUint256OrNil parses a decimal string into a *uint256.Int, returning
// nil for an empty field (the registry treats a nil sqrt price/liquidity as
// not-yet-observed, matching the zero value a freshly admitted concentrated
// pool starts with before its first live event).
func parseUint256OrNil(s string) *uint256.Int {
	if s == "" {
		return nil
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil
	}
	return n
}
