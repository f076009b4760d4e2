// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package google_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/internal/provider/google"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

var _ provider.Provider = (*google.Provider)(nil)

func newTestProvider(t *testing.T) *google.Provider {
	t.Helper()
	p, err := google.New(google.Config{
		APIKey:   "test-key",
		Model:    "gemini-2.0-flash",
		Priority: 2,
	})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAPIKeyAndModel(t *testing.T) {
	_, err := google.New(google.Config{Model: "gemini-2.0-flash"})
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeProviderRequestInvalid))

	_, err = google.New(google.Config{APIKey: "test-key"})
	require.Error(t, err)
}

func TestProvider_Identity(t *testing.T) {
	p := newTestProvider(t)

	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "gemini-2.0-flash", p.Model())
	assert.Equal(t, 2, p.Priority())
	assert.NotNil(t, p.Health())
}

func TestProvider_Capabilities(t *testing.T) {
	caps := newTestProvider(t).Capabilities()
	assert.True(t, caps.Tools)
	assert.True(t, caps.StructuredOutput)
	assert.True(t, caps.Embeddings)
}

func TestBuildRequest_SystemBecomesInstruction(t *testing.T) {
	p := newTestProvider(t)

	temp := 0.2
	contents, config, err := p.BuildRequest([]provider.Message{
		{Role: provider.RoleSystem, Content: "You are a banking assistant."},
		{Role: provider.RoleUser, Content: "What is my balance?"},
		{Role: provider.RoleAssistant, Content: "Let me check."},
	}, provider.Options{Temperature: &temp, MaxTokens: 128})
	require.NoError(t, err)

	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "You are a banking assistant.", config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, float64(*config.Temperature), 1e-6)
	assert.Equal(t, int32(128), config.MaxOutputTokens)

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestBuildRequest_UnsupportedRole(t *testing.T) {
	p := newTestProvider(t)

	_, _, err := p.BuildRequest([]provider.Message{
		{Role: provider.Role("tool"), Content: "x"},
	}, provider.Options{})
	require.Error(t, err)
	assert.True(t, sarathierr.HasCode(err, sarathierr.CodeProviderRequestInvalid))
}

func TestConvertTools(t *testing.T) {
	tools := google.ConvertTools([]provider.ToolDefinition{{
		Name:        "get_balance",
		Description: "Look up the account balance.",
		InputSchema: map[string]any{"type": "object"},
	}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "get_balance", tools[0].FunctionDeclarations[0].Name)
}
