// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathi-ai/sarathi/internal/manager"
	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

func newManager(t *testing.T, cfg manager.Config, providers ...provider.Provider) *manager.Manager {
	t.Helper()
	m, err := manager.New(providers, cfg, nil, nil)
	require.NoError(t, err)
	return m
}

func failWith(code sarathierr.Code) func() (*provider.Result, error) {
	return func() (*provider.Result, error) {
		return nil, sarathierr.New(code, "backend rejected the request")
	}
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := manager.New(nil, manager.Config{}, nil, nil)
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeProviderNotFound))
}

func TestRequest_Validate(t *testing.T) {
	schema, err := provider.NewOutputSchema("intent", map[string]any{"type": "object"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  manager.Request
		ok   bool
	}{
		{"plain", manager.Request{Messages: userRequest("hi")}, true},
		{"empty messages", manager.Request{}, false},
		{"empty content", manager.Request{Messages: []provider.Message{{Role: provider.RoleUser}}}, false},
		{"bad role", manager.Request{Messages: []provider.Message{{Role: "tool", Content: "x"}}}, false},
		{"negative max tokens", manager.Request{Messages: userRequest("hi"), MaxTokens: -1}, false},
		{"tools and schema together", manager.Request{
			Messages: userRequest("hi"),
			Tools:    []provider.ToolDefinition{{Name: "t"}},
			Schema:   schema,
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, sarathierr.HasCode(err, sarathierr.CodeManagerRequestInvalid))
			}
		})
	}
}

func TestRequest_Mode(t *testing.T) {
	schema, err := provider.NewOutputSchema("intent", map[string]any{"type": "object"})
	require.NoError(t, err)

	assert.Equal(t, manager.ModeGenerate, (&manager.Request{}).Mode())
	assert.Equal(t, manager.ModeTools,
		(&manager.Request{Tools: []provider.ToolDefinition{{Name: "t"}}}).Mode())
	assert.Equal(t, manager.ModeStructured, (&manager.Request{Schema: schema}).Mode())
}

func TestInvoke_UsesHighestPriorityProvider(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	second := newFakeProvider(t, "groq", 2)
	// Construction order should not matter, priority does.
	m := newManager(t, manager.Config{EnableFallback: true}, second, first)

	result, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.NoError(t, err)

	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "openai-model", result.Model)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestInvoke_FallsBackOnFailure(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	first.respond = failWith(sarathierr.CodeProviderRateLimited)
	second := newFakeProvider(t, "groq", 2)

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	result, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.NoError(t, err)

	assert.Equal(t, "groq", result.Provider)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.SuccessfulRequests)
	assert.Equal(t, int64(1), stats.FallbackCount)
	assert.Equal(t, int64(0), stats.FailedRequests)
}

func TestInvoke_FallbackDisabledStopsAtFirstFailure(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	first.respond = failWith(sarathierr.CodeProviderUnavailable)
	second := newFakeProvider(t, "groq", 2)

	m := newManager(t, manager.Config{EnableFallback: false}, first, second)

	_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.Error(t, err)
	assert.True(t, sarathierr.IsUnavailable(err))
	assert.Equal(t, 0, second.calls)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.FailedRequests)
}

func TestInvoke_AllProvidersExhausted(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	first.respond = failWith(sarathierr.CodeProviderQuotaExceeded)
	second := newFakeProvider(t, "groq", 2)
	second.respond = failWith(sarathierr.CodeProviderUnavailable)

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.Error(t, err)
	assert.True(t, sarathierr.IsExhausted(err))
	// Aggregate carries failure kinds, not backend messages.
	assert.Contains(t, err.Error(), "openai: quota_exceeded")
	assert.Contains(t, err.Error(), "groq: unavailable")
	assert.NotContains(t, err.Error(), "backend rejected the request")

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, int64(0), stats.SuccessfulRequests)
}

func TestInvoke_SkipsOpenCircuitWithoutAttempt(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	second := newFakeProvider(t, "groq", 2)

	// Trip the first provider's breaker directly.
	for range 5 {
		first.health.RecordError()
	}
	require.False(t, first.health.IsAvailable())

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	result, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.NoError(t, err)
	assert.Equal(t, "groq", result.Provider)
	assert.Equal(t, 0, first.calls)

	// A skip is not an attempt, so this is not a fallback.
	assert.Equal(t, int64(0), m.Stats().FallbackCount)
}

func TestInvoke_SkipsProviderWithoutCapability(t *testing.T) {
	first := newFakeProvider(t, "limited", 1)
	first.caps = provider.Capabilities{}
	second := newFakeProvider(t, "full", 2)

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	schema, err := provider.NewOutputSchema("intent", map[string]any{"type": "object"})
	require.NoError(t, err)

	result, err := m.Invoke(context.Background(), &manager.Request{
		Messages: userRequest("hi"),
		Schema:   schema,
	})
	require.NoError(t, err)
	assert.Equal(t, "full", result.Provider)
	assert.Equal(t, 0, first.calls)
}

func TestInvoke_SuccessRecordedOnTracker(t *testing.T) {
	p := newFakeProvider(t, "openai", 1)
	m := newManager(t, manager.Config{EnableFallback: true}, p)

	_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.NoError(t, err)

	requests, successes, errors := p.health.Counters()
	assert.Equal(t, int64(1), requests)
	assert.Equal(t, int64(1), successes)
	assert.Equal(t, int64(0), errors)
}

func TestInvoke_CancellationDoesNotCountAsProviderError(t *testing.T) {
	first := newFakeProvider(t, "openai", 1)
	second := newFakeProvider(t, "groq", 2)

	ctx, cancel := context.WithCancel(context.Background())
	first.respond = func() (*provider.Result, error) {
		cancel()
		return nil, ctx.Err()
	}

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	_, err := m.Invoke(ctx, &manager.Request{Messages: userRequest("hi")})
	require.ErrorIs(t, err, context.Canceled)

	// The cancelled attempt is not an error against the provider, and no
	// fallback happens.
	requests, _, errors := first.health.Counters()
	assert.Equal(t, int64(0), requests)
	assert.Equal(t, int64(0), errors)
	assert.Equal(t, 0, second.calls)
}

func TestInvoke_CancelledAttemptLeavesCircuitRecoverable(t *testing.T) {
	p := newFakeProvider(t, "openai", 1)

	// Trip the breaker, then move past the cooldown so the next caller is
	// admitted as the half-open probe.
	for range 5 {
		p.health.RecordError()
	}
	now := time.Now()
	p.health.SetNowFunc(func() time.Time { return now.Add(6 * time.Minute) })

	ctx, cancel := context.WithCancel(context.Background())
	p.respond = func() (*provider.Result, error) {
		cancel()
		return nil, ctx.Err()
	}

	m := newManager(t, manager.Config{EnableFallback: true}, p)

	_, err := m.Invoke(ctx, &manager.Request{Messages: userRequest("hi")})
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned attempt handed its probe slot back: a fresh request is
	// admitted and its success closes the circuit.
	p.respond = func() (*provider.Result, error) {
		return &provider.Result{Text: "ok"}, nil
	}
	result, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.True(t, p.health.IsAvailable())
}

func TestEmbed_CancelledAttemptLeavesCircuitRecoverable(t *testing.T) {
	p := newFakeProvider(t, "openai", 1)

	for range 5 {
		p.health.RecordError()
	}
	now := time.Now()
	p.health.SetNowFunc(func() time.Time { return now.Add(6 * time.Minute) })

	ctx, cancel := context.WithCancel(context.Background())
	p.embed = func() ([]float64, error) {
		cancel()
		return nil, ctx.Err()
	}

	m := newManager(t, manager.Config{EnableFallback: true}, p)

	_, err := m.Embed(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)

	p.embed = func() ([]float64, error) { return []float64{0.1, 0.2}, nil }
	vec, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
}

func TestInvoke_TimeoutApplies(t *testing.T) {
	p := newFakeProvider(t, "slow", 1)
	p.respond = func() (*provider.Result, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}

	m := newManager(t, manager.Config{EnableFallback: true, Timeout: 10 * time.Millisecond}, p)

	_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_InvalidRequestNotCounted(t *testing.T) {
	p := newFakeProvider(t, "openai", 1)
	m := newManager(t, manager.Config{EnableFallback: true}, p)

	_, err := m.Invoke(context.Background(), &manager.Request{})
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeManagerRequestInvalid))
	assert.Equal(t, int64(0), m.Stats().TotalRequests)
}

func TestEmbed_SkipsProvidersWithoutEmbeddings(t *testing.T) {
	first := newFakeProvider(t, "groq", 1)
	first.caps.Embeddings = false
	second := newFakeProvider(t, "openai", 2)

	m := newManager(t, manager.Config{EnableFallback: true}, first, second)

	vec, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
	assert.Equal(t, 0, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestEmbed_Exhaustion(t *testing.T) {
	p := newFakeProvider(t, "openai", 1)
	p.embed = func() ([]float64, error) {
		return nil, sarathierr.New(sarathierr.CodeProviderUnavailable, "down")
	}

	m := newManager(t, manager.Config{EnableFallback: true}, p)

	_, err := m.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, sarathierr.IsExhausted(err))
}

func TestEmbed_RequiresText(t *testing.T) {
	m := newManager(t, manager.Config{}, newFakeProvider(t, "openai", 1))

	_, err := m.Embed(context.Background(), "")
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeManagerRequestInvalid))
}

func TestProviders_ReportsPriorityOrder(t *testing.T) {
	m := newManager(t, manager.Config{},
		newFakeProvider(t, "groq", 2),
		newFakeProvider(t, "openai", 1),
		newFakeProvider(t, "google", 3),
	)

	infos := m.Providers()
	require.Len(t, infos, 3)
	assert.Equal(t, "openai", infos[0].Name)
	assert.Equal(t, "groq", infos[1].Name)
	assert.Equal(t, "google", infos[2].Name)
	assert.True(t, infos[0].Health.Available)
}

func TestStats_SuccessRate(t *testing.T) {
	good := newFakeProvider(t, "openai", 1)
	m := newManager(t, manager.Config{EnableFallback: true}, good)

	for range 3 {
		_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
		require.NoError(t, err)
	}
	good.respond = failWith(sarathierr.CodeProviderFailure)
	_, err := m.Invoke(context.Background(), &manager.Request{Messages: userRequest("hi")})
	require.Error(t, err)

	stats := m.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.SuccessfulRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
}
