// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider

import (
	"context"
	"encoding/json"
)

// Provider is the core interface for interchangeable text-generation
// backends. Identity, model, and priority are fixed at construction;
// only the embedded health state mutates afterwards.
type Provider interface {
	Name() string
	Model() string
	Priority() int
	Capabilities() Capabilities
	Health() *HealthTracker

	// Generate performs plain text generation. Exactly one outbound
	// request per call; retries and fallback are the manager's job.
	Generate(ctx context.Context, msgs []Message, opts Options) (*Result, error)

	// GenerateWithTools lets the model request invocation of the given
	// tools instead of (or in addition to) returning text.
	GenerateWithTools(ctx context.Context, msgs []Message, tools []ToolDefinition, opts Options) (*Result, error)

	// GenerateStructured constrains the output to conform to schema.
	// A payload that does not validate is a provider failure, never a
	// best-effort result.
	GenerateStructured(ctx context.Context, msgs []Message, schema *OutputSchema, opts Options) (*Result, error)

	// Embed generates an embedding vector for the given text. Providers
	// without the embeddings capability fail fast.
	Embed(ctx context.Context, text string) ([]float64, error)

	Close() error
}

// Capabilities declares what a provider supports. A provider lacking a
// capability fails fast so the manager can fall back immediately.
type Capabilities struct {
	Tools            bool
	StructuredOutput bool
	Embeddings       bool
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options carries per-call generation parameters.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON
}

// Usage tracks token consumption for a single call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the outcome of a single provider invocation. Plain generation
// fills Text; tool-augmented generation fills Text and/or ToolCalls;
// schema-constrained generation fills Structured with the validated payload.
type Result struct {
	Text       string          `json:"text,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Usage      Usage           `json:"usage"`

	// Identity of the provider that actually served the call, filled in
	// by the manager for caller attribution.
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// HasToolCalls reports whether the model requested at least one tool
// invocation.
func (r *Result) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}
