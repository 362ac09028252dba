// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m.BufferedEvents)

	m.BufferedEvents.Set(5)
	m.EventsProcessed.WithLabelValues("uniswap_v2", "Swap").Inc()
	m.ProcessorErrors.Inc()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
