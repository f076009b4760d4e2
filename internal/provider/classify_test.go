// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Taxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		cause    error
		wantCode sarathierr.Code
	}{
		{
			name:     "429 with quota semantics",
			status:   429,
			cause:    stderrors.New("You exceeded your current quota, please check your plan and billing details"),
			wantCode: sarathierr.CodeProviderQuotaExceeded,
		},
		{
			name:     "429 with insufficient_quota type",
			status:   429,
			cause:    stderrors.New(`{"error":{"type":"insufficient_quota"}}`),
			wantCode: sarathierr.CodeProviderQuotaExceeded,
		},
		{
			name:     "plain 429",
			status:   429,
			cause:    stderrors.New("Too many requests, slow down"),
			wantCode: sarathierr.CodeProviderRateLimited,
		},
		{
			name:     "network failure without response",
			status:   0,
			cause:    stderrors.New("dial tcp: connection refused"),
			wantCode: sarathierr.CodeProviderUnavailable,
		},
		{
			name:     "unknown model",
			status:   404,
			cause:    stderrors.New("model not found"),
			wantCode: sarathierr.CodeProviderUnavailable,
		},
		{
			name:     "server error",
			status:   503,
			cause:    stderrors.New("service unavailable"),
			wantCode: sarathierr.CodeProviderUnavailable,
		},
		{
			name:     "auth failure is the catch-all",
			status:   401,
			cause:    stderrors.New("invalid api key"),
			wantCode: sarathierr.CodeProviderFailure,
		},
		{
			name:     "bad request is the catch-all",
			status:   400,
			cause:    stderrors.New("invalid request body"),
			wantCode: sarathierr.CodeProviderFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := provider.Classify("openai", "gpt-4.1", tt.status, tt.cause)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, sarathierr.CodeOf(err))
			assert.True(t, sarathierr.IsProviderFailure(err))

			fields := sarathierr.FieldsOf(err)
			assert.Equal(t, "openai", fields["provider"], "every classified error names its provider")
			assert.Equal(t, "gpt-4.1", fields["model"])
		})
	}
}

func TestClassify_NilCause(t *testing.T) {
	assert.NoError(t, provider.Classify("openai", "gpt-4.1", 200, nil))
}

func TestClassify_CancellationPassesThrough(t *testing.T) {
	err := provider.Classify("openai", "gpt-4.1", 0, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, sarathierr.IsProviderFailure(err))

	err = provider.Classify("openai", "gpt-4.1", 0, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sarathierr.IsProviderFailure(err))
}

func TestUnavailable_CarriesIdentity(t *testing.T) {
	err := provider.Unavailable("groq", "llama-3.3-70b-versatile", "malformed response")
	assert.True(t, sarathierr.IsUnavailable(err))

	fields := sarathierr.FieldsOf(err)
	assert.Equal(t, "groq", fields["provider"])
	assert.Equal(t, "llama-3.3-70b-versatile", fields["model"])
}

func TestUnsupportedCapability_IsUnavailable(t *testing.T) {
	err := provider.UnsupportedCapability("groq", "llama-3.3-70b-versatile", "embeddings")
	assert.True(t, sarathierr.IsUnavailable(err),
		"capability mismatch must trigger immediate fallback, not a degraded result")
	assert.Contains(t, err.Error(), "embeddings")
}
