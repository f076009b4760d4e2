// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

// Package telemetry exposes Prometheus metrics for provider invocations.
// All Collector methods are nil-safe so callers can run without metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and updates the process metrics. Construct one per
// process and share it between the manager and the HTTP server.
type Collector struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	fallbacks   prometheus.Counter
	exhaustions *prometheus.CounterVec
	circuitOpen *prometheus.CounterVec
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarathi",
			Name:      "provider_requests_total",
			Help:      "Provider invocations by provider, mode, and outcome.",
		}, []string{"provider", "mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sarathi",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider invocation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "mode"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sarathi",
			Name:      "fallbacks_total",
			Help:      "Requests served by a provider other than the first one tried.",
		}),
		exhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarathi",
			Name:      "exhaustions_total",
			Help:      "Requests that failed after every eligible provider was tried.",
		}, []string{"mode"}),
		circuitOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sarathi",
			Name:      "circuit_open_total",
			Help:      "Circuit breaker transitions into the open state.",
		}, []string{"provider"}),
	}

	c.registry.MustRegister(c.requests, c.duration, c.fallbacks, c.exhaustions, c.circuitOpen)
	return c
}

// Registry returns the backing registry for scrape handlers.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveRequest records a single provider invocation.
func (c *Collector) ObserveRequest(provider, mode, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(provider, mode, outcome).Inc()
	c.duration.WithLabelValues(provider, mode).Observe(elapsed.Seconds())
}

// RecordFallback counts a request served by a provider that was not the
// first one tried.
func (c *Collector) RecordFallback() {
	if c == nil {
		return
	}
	c.fallbacks.Inc()
}

// RecordExhaustion counts a request that failed on every eligible provider.
func (c *Collector) RecordExhaustion(mode string) {
	if c == nil {
		return
	}
	c.exhaustions.WithLabelValues(mode).Inc()
}

// RecordCircuitOpen counts a breaker trip for the named provider.
func (c *Collector) RecordCircuitOpen(provider string) {
	if c == nil {
		return
	}
	c.circuitOpen.WithLabelValues(provider).Inc()
}
