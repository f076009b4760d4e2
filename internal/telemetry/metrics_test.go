// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathi-ai/sarathi/internal/telemetry"
)

func TestCollector_ObserveRequest(t *testing.T) {
	c := telemetry.NewCollector()

	c.ObserveRequest("openai", "generate", "success", 120*time.Millisecond)
	c.ObserveRequest("openai", "generate", "success", 80*time.Millisecond)
	c.ObserveRequest("groq", "structured", "error", 40*time.Millisecond)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["sarathi_provider_requests_total"])
	assert.True(t, names["sarathi_provider_request_duration_seconds"])
}

func TestCollector_CountersAccumulate(t *testing.T) {
	c := telemetry.NewCollector()

	c.RecordFallback()
	c.RecordFallback()
	c.RecordExhaustion("generate")
	c.RecordCircuitOpen("openai")

	count, err := testutil.GatherAndCount(c.Registry(),
		"sarathi_fallbacks_total", "sarathi_exhaustions_total", "sarathi_circuit_open_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *telemetry.Collector

	assert.NotPanics(t, func() {
		c.ObserveRequest("openai", "generate", "success", time.Millisecond)
		c.RecordFallback()
		c.RecordExhaustion("generate")
		c.RecordCircuitOpen("openai")
	})
	assert.Nil(t, c.Registry())
}
