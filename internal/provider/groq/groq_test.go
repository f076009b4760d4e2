// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package groq_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/internal/provider/groq"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

var _ provider.Provider = (*groq.Provider)(nil)

const toolCallBody = `{
	"id": "chatcmpl-groq-1",
	"object": "chat.completion",
	"model": "llama-3.3-70b-versatile",
	"choices": [{
		"index": 0,
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "intent", "arguments": "{\"intent\":\"balance_inquiry\"}"}
			}]
		},
		"finish_reason": "tool_calls"
	}],
	"usage": {"prompt_tokens": 20, "completion_tokens": 9, "total_tokens": 29}
}`

func newTestProvider(t *testing.T, handler http.Handler) *groq.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := groq.New(groq.Config{
		APIKey:  "gsk-test",
		Model:   "llama-3.3-70b-versatile",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAPIKeyAndModel(t *testing.T) {
	_, err := groq.New(groq.Config{Model: "llama-3.3-70b-versatile"})
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeProviderRequestInvalid))

	_, err = groq.New(groq.Config{APIKey: "gsk-test"})
	require.Error(t, err)
}

func TestProvider_Capabilities(t *testing.T) {
	p, err := groq.New(groq.Config{APIKey: "gsk-test", Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)

	assert.Equal(t, "groq", p.Name())
	caps := p.Capabilities()
	assert.True(t, caps.Tools)
	assert.True(t, caps.StructuredOutput)
	assert.False(t, caps.Embeddings)
}

func TestEmbed_Unsupported(t *testing.T) {
	p, err := groq.New(groq.Config{APIKey: "gsk-test", Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeProviderEmbedUnsupported))
}

func TestGenerateStructured_ForcedToolCall(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallBody))
	}))

	schema, err := provider.NewOutputSchema("intent", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{"type": "string"},
		},
		"required": []any{"intent"},
	})
	require.NoError(t, err)

	result, err := p.GenerateStructured(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "What is my balance?"},
	}, schema, provider.Options{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"intent":"balance_inquiry"}`, string(result.Structured))
	assert.Equal(t, 20, result.Usage.InputTokens)
	assert.Equal(t, 9, result.Usage.OutputTokens)
}

func TestGenerateStructured_NoToolCall(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-groq-2",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "plain text"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`))
	}))

	schema, err := provider.NewOutputSchema("intent", map[string]any{"type": "object"})
	require.NoError(t, err)

	_, err = p.GenerateStructured(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "hi"},
	}, schema, provider.Options{})
	require.Error(t, err)
	assert.True(t, sarathierr.IsUnavailable(err))
}

func TestGenerate_RateLimited(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit reached", "type": "requests"}}`))
	}))

	_, err := p.Generate(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "hi"},
	}, provider.Options{})
	require.Error(t, err)
	assert.True(t, sarathierr.IsRateLimited(err))
}
