// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package anthropic

import (
	"context"
	"errors"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// defaultMaxTokens is used when the caller does not set a token limit; the
// Anthropic Messages API requires max_tokens on every request.
const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey   string
	Model    string
	Priority int
	BaseURL  string // optional, useful for testing against a mock server
	Health   provider.HealthConfig
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	cfg    Config
	health *provider.HealthTracker
}

// New creates an Anthropic provider. Returns an error if the API key or model
// is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"anthropic: missing api_key in config", sarathierr.FieldProvider("anthropic"))
	}
	if cfg.Model == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"anthropic: missing model in config", sarathierr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := provider.NewHealthTracker(cfg.Health)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		cfg:    cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string                    { return "anthropic" }
func (p *Provider) Model() string                   { return p.cfg.Model }
func (p *Provider) Priority() int                   { return p.cfg.Priority }
func (p *Provider) Health() *provider.HealthTracker { return p.health }
func (p *Provider) Close() error                    { return nil }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Tools:            true,
		StructuredOutput: true,
		Embeddings:       false,
	}
}

func (p *Provider) Generate(ctx context.Context, msgs []provider.Message, opts provider.Options) (*provider.Result, error) {
	params, err := p.buildParams(msgs, opts)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	result := &provider.Result{Usage: usageOf(resp)}
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.Text += block.Text
		}
	}
	return result, nil
}

func (p *Provider) GenerateWithTools(ctx context.Context, msgs []provider.Message, tools []provider.ToolDefinition, opts provider.Options) (*provider.Result, error) {
	params, err := p.buildParams(msgs, opts)
	if err != nil {
		return nil, err
	}
	params.Tools = convertTools(tools)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	result := &provider.Result{Usage: usageOf(resp)}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return result, nil
}

// GenerateStructured forces a single tool whose input schema is the target
// schema, then validates the input the model produced. The Messages API has
// no schema-constrained response format, so tool forcing is the reliable
// path to structured output.
func (p *Provider) GenerateStructured(ctx context.Context, msgs []provider.Message, schema *provider.OutputSchema, opts provider.Options) (*provider.Result, error) {
	params, err := p.buildParams(msgs, opts)
	if err != nil {
		return nil, err
	}
	params.Tools = convertTools([]provider.ToolDefinition{{
		Name:        schema.Name(),
		Description: "Record the answer in the required format.",
		InputSchema: schema.Definition(),
	}})
	params.ToolChoice = anthropicsdk.ToolChoiceUnionParam{
		OfTool: &anthropicsdk.ToolChoiceToolParam{Name: schema.Name()},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	var raw []byte
	for _, block := range resp.Content {
		if block.Type == "tool_use" {
			raw = []byte(block.Input)
			break
		}
	}
	if raw == nil {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "model did not produce structured output")
	}

	payload, err := schema.Validate(raw)
	if err != nil {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model,
			"structured payload failed schema validation: "+err.Error())
	}

	return &provider.Result{
		Structured: payload,
		Usage:      usageOf(resp),
	}, nil
}

func (p *Provider) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, provider.UnsupportedCapability(p.Name(), p.cfg.Model, "embeddings")
}

// buildParams converts messages and options into MessageNewParams. System
// messages are folded into the top-level system param, not the message list.
func (p *Provider) buildParams(msgs []provider.Message, opts provider.Options) (anthropicsdk.MessageNewParams, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.cfg.Model),
		MaxTokens: maxTokens,
	}
	if opts.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*opts.Temperature)
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			params.System = append(params.System, anthropicsdk.TextBlockParam{Text: msg.Content})
		case provider.RoleUser:
			params.Messages = append(params.Messages, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case provider.RoleAssistant:
			params.Messages = append(params.Messages, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		default:
			return anthropicsdk.MessageNewParams{}, sarathierr.Errorf(sarathierr.CodeProviderRequestInvalid,
				"anthropic: unsupported message role %q", msg.Role)
		}
	}
	return params, nil
}

// convertTools transforms provider.ToolDefinition slices into Anthropic SDK
// tool params. The SDK expects Properties and Required as separate fields
// rather than a whole JSON Schema object.
func convertTools(tools []provider.ToolDefinition) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.Opt(t.Description),
				InputSchema: extractSchema(t.InputSchema),
			},
		})
	}
	return result
}

func extractSchema(raw map[string]any) anthropicsdk.ToolInputSchemaParam {
	schema := anthropicsdk.ToolInputSchemaParam{}
	if props, ok := raw["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := raw["required"].([]any); ok {
		strs := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		schema.Required = strs
	}
	return schema
}

// classify maps an SDK error onto the provider failure taxonomy.
func (p *Provider) classify(err error) error {
	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		return provider.Classify(p.Name(), p.cfg.Model, apierr.StatusCode, err)
	}
	return provider.Classify(p.Name(), p.cfg.Model, 0, err)
}

func usageOf(resp *anthropicsdk.Message) provider.Usage {
	return provider.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
}
