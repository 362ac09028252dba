// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package telemetry exposes the pool mirror's runtime counters as
// Prometheus collectors: stream buffer occupancy, processor error/category
// counts, and startup phase durations. Metrics transport is an out-of-scope
// external collaborator per spec §1; this package only defines and
// registers the series a downstream scraper would pull.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this module registers. A single instance is
// passed to the startup coordinator and used by the composition root; the
// stream client and processor do not take one.
type Metrics struct {
	BufferedEvents   prometheus.Gauge
	BufferCapacity   prometheus.Gauge
	EventsProcessed  *prometheus.CounterVec
	ProcessorErrors  prometheus.Counter
	PhaseDuration    *prometheus.HistogramVec
	PoolsAdmitted    *prometheus.GaugeVec
	PoolsScrapeFailed prometheus.Counter
}

// New constructs and registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BufferedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "poolmirror",
			Subsystem: "stream",
			Name:      "buffered_events",
			Help:      "Number of pool events currently held in the stream client's buffer.",
		}),
		BufferCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "poolmirror",
			Subsystem: "stream",
			Name:      "buffer_capacity",
			Help:      "Configured capacity of the stream client's current buffering mode.",
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolmirror",
			Subsystem: "processor",
			Name:      "events_processed_total",
			Help:      "Pool events applied to the arena registry, by protocol and event type.",
		}, []string{"protocol", "event_type"}),
		ProcessorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poolmirror",
			Subsystem: "processor",
			Name:      "errors_total",
			Help:      "Pool events that failed processing.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poolmirror",
			Subsystem: "startup",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each startup coordinator phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		PoolsAdmitted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "poolmirror",
			Subsystem: "registry",
			Name:      "pools_admitted",
			Help:      "Number of pools currently admitted to the arena registry, by protocol.",
		}, []string{"protocol"}),
		PoolsScrapeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poolmirror",
			Subsystem: "startup",
			Name:      "pools_scrape_failed_total",
			Help:      "Pools whose baseline scrape failed during startup or incremental add.",
		}),
	}

	reg.MustRegister(
		m.BufferedEvents,
		m.BufferCapacity,
		m.EventsProcessed,
		m.ProcessorErrors,
		m.PhaseDuration,
		m.PoolsAdmitted,
		m.PoolsScrapeFailed,
	)
	return m
}
