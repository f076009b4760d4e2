// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// Classify maps an upstream failure to the provider failure taxonomy:
//
//	429 with quota/billing semantics  -> provider.quota.exceeded
//	429 otherwise                     -> provider.rate.limited
//	unreachable, 5xx, timeout,
//	unknown model, malformed response -> provider.unavailable
//	anything else                     -> provider.failure
//
// status 0 means no HTTP response was observed (network-level failure).
// Context cancellation is passed through untouched so the manager can
// distinguish it from a provider failure.
func Classify(name, model string, status int, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	attrs := []sarathierr.Attr{
		sarathierr.FieldProvider(name),
		sarathierr.FieldModel(model),
	}

	switch {
	case status == http.StatusTooManyRequests && hasQuotaSemantics(cause.Error()):
		return sarathierr.Wrap(cause, sarathierr.CodeProviderQuotaExceeded,
			name+": quota exceeded", attrs...)
	case status == http.StatusTooManyRequests:
		return sarathierr.Wrap(cause, sarathierr.CodeProviderRateLimited,
			name+": rate limited", attrs...)
	case status == 0,
		status == http.StatusNotFound,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return sarathierr.Wrap(cause, sarathierr.CodeProviderUnavailable,
			name+": backend unavailable", attrs...)
	default:
		return sarathierr.Wrap(cause, sarathierr.CodeProviderFailure,
			name+": request failed", attrs...)
	}
}

// Unavailable builds a provider.unavailable error for failures observed
// without an upstream status: malformed responses, schema validation
// failures, and capability mismatches.
func Unavailable(name, model, msg string) error {
	return sarathierr.New(sarathierr.CodeProviderUnavailable, name+": "+msg,
		sarathierr.FieldProvider(name), sarathierr.FieldModel(model))
}

// UnsupportedCapability is the fail-fast error for an invocation mode the
// provider does not implement, so the manager falls back immediately
// instead of returning a degraded result.
func UnsupportedCapability(name, model, capability string) error {
	return Unavailable(name, model, capability+" not supported")
}

// hasQuotaSemantics reports whether a 429 body indicates exhausted quota
// or billing rather than transient rate limiting.
func hasQuotaSemantics(msg string) bool {
	m := strings.ToLower(msg)
	for _, marker := range []string{"quota", "billing", "insufficient_quota", "exceeded your current"} {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
