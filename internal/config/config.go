// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the pool mirror's runtime configuration via viper,
// following the flag-set + viper-instance pattern used by the wider luxfi
// tooling (cmd/simulator/config.BuildFlagSet / BuildViper).
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config keys, exported so callers composing their own flag sets can bind
// to the same names this package defaults and reads.
const (
	SocketPathKey            = "socket-path"
	BufferCapacityKey        = "buffer-capacity"
	IncrementalCapacityKey   = "incremental-buffer-capacity"
	V2ScrapeBatchSizeKey     = "v2-scrape-batch-size"
	V3V4ScrapeBatchSizeKey   = "v3-v4-scrape-batch-size"
	ScrapingConcurrencyKey   = "scraping-concurrency"
	ParallelScrapingKey      = "parallel-scraping"
	RetryMaxAttemptsKey      = "retry-max-attempts"
	RetryInitialDelayKey     = "retry-initial-delay"
	RetryMaxDelayKey         = "retry-max-delay"
	LogLevelKey              = "log-level"
	MetricsAddrKey           = "metrics-addr"
)

// Defaults, per SPEC_FULL.md §6 Configuration table.
const (
	DefaultSocketPath          = "/tmp/reth_exex.sock"
	DefaultBufferCapacity      = 100_000
	DefaultIncrementalCapacity = 10_000
	DefaultV2ScrapeBatchSize   = 500
	DefaultV3V4ScrapeBatchSize = 50
	DefaultScrapingConcurrency = 10
	DefaultParallelScraping    = false
	DefaultRetryMaxAttempts    = 10
	DefaultRetryInitialDelay   = 100 * time.Millisecond
	DefaultRetryMaxDelay       = 10 * time.Second
	DefaultLogLevel            = "info"
	DefaultMetricsAddr         = ":9090"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	SocketPath string

	BufferCapacity        int
	IncrementalCapacity   int
	V2ScrapeBatchSize     int
	V3V4ScrapeBatchSize   int
	ScrapingConcurrency   int
	ParallelScraping      bool

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	LogLevel    string
	MetricsAddr string
}

// BuildFlagSet declares the command-line flags backing Config, with the
// same defaults applied by BuildViper when a flag is left unset.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("poolmirror", pflag.ContinueOnError)
	fs.String(SocketPathKey, DefaultSocketPath, "path to the upstream stream socket")
	fs.Int(BufferCapacityKey, DefaultBufferCapacity, "cold-start event buffer capacity")
	fs.Int(IncrementalCapacityKey, DefaultIncrementalCapacity, "incremental-add event buffer capacity")
	fs.Int(V2ScrapeBatchSizeKey, DefaultV2ScrapeBatchSize, "v2 baseline scrape batch size")
	fs.Int(V3V4ScrapeBatchSizeKey, DefaultV3V4ScrapeBatchSize, "v3/v4 baseline scrape batch size")
	fs.Int(ScrapingConcurrencyKey, DefaultScrapingConcurrency, "scrape fan-out width when parallel scraping is enabled")
	fs.Bool(ParallelScrapingKey, DefaultParallelScraping, "scrape pools concurrently instead of one at a time")
	fs.Int(RetryMaxAttemptsKey, DefaultRetryMaxAttempts, "max connect retry attempts")
	fs.Duration(RetryInitialDelayKey, DefaultRetryInitialDelay, "initial connect retry delay")
	fs.Duration(RetryMaxDelayKey, DefaultRetryMaxDelay, "max connect retry delay (exponential backoff cap)")
	fs.String(LogLevelKey, DefaultLogLevel, "log level: trace, debug, info, warn, error")
	fs.String(MetricsAddrKey, DefaultMetricsAddr, "prometheus metrics listen address")
	return fs
}

// BuildViper parses args against fs and layers in environment overrides
// (POOLMIRROR_ prefix, dashes to underscores), returning the resulting
// viper instance. Callers read the final value with BuildConfig.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("poolmirror")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// BuildConfig resolves a Config from a populated viper instance.
func BuildConfig(v *viper.Viper) (*Config, error) {
	return &Config{
		SocketPath:          v.GetString(SocketPathKey),
		BufferCapacity:      v.GetInt(BufferCapacityKey),
		IncrementalCapacity: v.GetInt(IncrementalCapacityKey),
		V2ScrapeBatchSize:   v.GetInt(V2ScrapeBatchSizeKey),
		V3V4ScrapeBatchSize: v.GetInt(V3V4ScrapeBatchSizeKey),
		ScrapingConcurrency: v.GetInt(ScrapingConcurrencyKey),
		ParallelScraping:    v.GetBool(ParallelScrapingKey),
		RetryMaxAttempts:    v.GetInt(RetryMaxAttemptsKey),
		RetryInitialDelay:   v.GetDuration(RetryInitialDelayKey),
		RetryMaxDelay:       v.GetDuration(RetryMaxDelayKey),
		LogLevel:            v.GetString(LogLevelKey),
		MetricsAddr:         v.GetString(MetricsAddrKey),
	}, nil
}

// Default returns a Config populated entirely with defaults, for tests and
// as a base a caller can override piecemeal.
func Default() *Config {
	return &Config{
		SocketPath:          DefaultSocketPath,
		BufferCapacity:      DefaultBufferCapacity,
		IncrementalCapacity: DefaultIncrementalCapacity,
		V2ScrapeBatchSize:   DefaultV2ScrapeBatchSize,
		V3V4ScrapeBatchSize: DefaultV3V4ScrapeBatchSize,
		ScrapingConcurrency: DefaultScrapingConcurrency,
		ParallelScraping:    DefaultParallelScraping,
		RetryMaxAttempts:    DefaultRetryMaxAttempts,
		RetryInitialDelay:   DefaultRetryInitialDelay,
		RetryMaxDelay:       DefaultRetryMaxDelay,
		LogLevel:            DefaultLogLevel,
		MetricsAddr:         DefaultMetricsAddr,
	}
}
