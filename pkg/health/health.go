// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package health

import "time"

// CircuitState is the circuit breaker state of a provider.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// Snapshot exposes the current health state of a provider for monitoring
// and operator visibility. All fields are point-in-time values safe to
// serialize to JSON.
type Snapshot struct {
	Requests     int64        `json:"requests"`
	Successes    int64        `json:"successes"`
	Errors       int64        `json:"errors"`
	ErrorRate    float64      `json:"error_rate"`
	State        CircuitState `json:"state"`
	Available    bool         `json:"available"`
	LastErrorAt  *time.Time   `json:"last_error_at,omitempty"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
	ProbeAllowed bool         `json:"probe_allowed"`
}
