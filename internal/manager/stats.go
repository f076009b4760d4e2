// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package manager

import (
	"sync/atomic"

	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/pkg/health"
)

// stats holds the manager's aggregate counters. Counters only ever
// increase; reads produce a snapshot that may straddle concurrent
// updates, which is fine for reporting.
type stats struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64
	fallbacks  atomic.Int64
}

// Stats is a point-in-time view of the manager's aggregate counters plus
// per-provider health.
type Stats struct {
	TotalRequests      int64          `json:"total_requests"`
	SuccessfulRequests int64          `json:"successful_requests"`
	FailedRequests     int64          `json:"failed_requests"`
	FallbackCount      int64          `json:"fallback_count"`
	SuccessRate        float64        `json:"success_rate"`
	Providers          []ProviderInfo `json:"providers"`
}

// ProviderInfo describes one managed provider and its current health.
type ProviderInfo struct {
	Name         string                `json:"name"`
	Model        string                `json:"model"`
	Priority     int                   `json:"priority"`
	Capabilities provider.Capabilities `json:"capabilities"`
	Health       health.Snapshot       `json:"health"`
}

// Stats returns the current aggregate counters and per-provider health.
func (m *Manager) Stats() Stats {
	s := Stats{
		TotalRequests:      m.stats.total.Load(),
		SuccessfulRequests: m.stats.successful.Load(),
		FailedRequests:     m.stats.failed.Load(),
		FallbackCount:      m.stats.fallbacks.Load(),
		Providers:          m.Providers(),
	}
	if s.TotalRequests > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests)
	}
	return s
}
