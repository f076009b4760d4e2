// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package manager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sarathi-ai/sarathi/internal/provider"
)

// fakeProvider is a scriptable provider for manager tests. The respond
// function drives every generation mode; calls counts attempts across
// all modes.
type fakeProvider struct {
	name     string
	model    string
	priority int
	caps     provider.Capabilities
	health   *provider.HealthTracker

	calls   int
	respond func() (*provider.Result, error)
	embed   func() ([]float64, error)
}

var _ provider.Provider = (*fakeProvider)(nil)

func newFakeProvider(t *testing.T, name string, priority int) *fakeProvider {
	t.Helper()
	tracker, err := provider.NewHealthTracker(provider.HealthConfig{})
	require.NoError(t, err)

	return &fakeProvider{
		name:     name,
		model:    name + "-model",
		priority: priority,
		caps:     provider.Capabilities{Tools: true, StructuredOutput: true, Embeddings: true},
		health:   tracker,
		respond: func() (*provider.Result, error) {
			return &provider.Result{Text: "ok from " + name}, nil
		},
		embed: func() ([]float64, error) {
			return []float64{0.1, 0.2}, nil
		},
	}
}

func (f *fakeProvider) Name() string                        { return f.name }
func (f *fakeProvider) Model() string                       { return f.model }
func (f *fakeProvider) Priority() int                       { return f.priority }
func (f *fakeProvider) Capabilities() provider.Capabilities { return f.caps }
func (f *fakeProvider) Health() *provider.HealthTracker     { return f.health }
func (f *fakeProvider) Close() error                        { return nil }

func (f *fakeProvider) Generate(ctx context.Context, _ []provider.Message, _ provider.Options) (*provider.Result, error) {
	return f.invoke(ctx)
}

func (f *fakeProvider) GenerateWithTools(ctx context.Context, _ []provider.Message, _ []provider.ToolDefinition, _ provider.Options) (*provider.Result, error) {
	return f.invoke(ctx)
}

func (f *fakeProvider) GenerateStructured(ctx context.Context, _ []provider.Message, _ *provider.OutputSchema, _ provider.Options) (*provider.Result, error) {
	return f.invoke(ctx)
}

func (f *fakeProvider) Embed(ctx context.Context, _ string) ([]float64, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.embed()
}

func (f *fakeProvider) invoke(ctx context.Context) (*provider.Result, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.respond()
}

func userRequest(content string) []provider.Message {
	return []provider.Message{{Role: provider.RoleUser, Content: content}}
}
