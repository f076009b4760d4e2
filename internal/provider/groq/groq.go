// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package groq

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Config holds Groq provider configuration.
type Config struct {
	APIKey   string
	Model    string
	Priority int
	BaseURL  string // optional, useful for testing against a mock server
	Health   provider.HealthConfig
}

// Provider implements provider.Provider against Groq's OpenAI-compatible
// API, reusing the OpenAI SDK with an overridden base URL.
type Provider struct {
	client openaisdk.Client
	cfg    Config
	health *provider.HealthTracker
}

// New creates a Groq provider. Returns an error if the API key or model is
// missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"groq: missing api_key in config", sarathierr.FieldProvider("groq"))
	}
	if cfg.Model == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"groq: missing model in config", sarathierr.FieldProvider("groq"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	health, err := provider.NewHealthTracker(cfg.Health)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: openaisdk.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
		cfg:    cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string                    { return "groq" }
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

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "response contained no choices")
	}

	return &provider.Result{
		Text:  completion.Choices[0].Message.Content,
		Usage: usageOf(completion),
	}, nil
}

func (p *Provider) GenerateWithTools(ctx context.Context, msgs []provider.Message, tools []provider.ToolDefinition, opts provider.Options) (*provider.Result, error) {
	params, err := p.buildParams(msgs, opts)
	if err != nil {
		return nil, err
	}
	params.Tools = convertTools(tools)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "response contained no choices")
	}

	msg := completion.Choices[0].Message
	result := &provider.Result{
		Text:  msg.Content,
		Usage: usageOf(completion),
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// GenerateStructured forces a single tool whose parameters are the target
// schema, then validates the arguments the model produced. Groq's API does
// not implement the json_schema response format, so tool forcing is the
// reliable path to schema-constrained output.
func (p *Provider) GenerateStructured(ctx context.Context, msgs []provider.Message, schema *provider.OutputSchema, opts provider.Options) (*provider.Result, error) {
	params, err := p.buildParams(msgs, opts)
	if err != nil {
		return nil, err
	}

	params.Tools = []openaisdk.ChatCompletionToolParam{{
		Function: shared.FunctionDefinitionParam{
			Name:        schema.Name(),
			Description: param.NewOpt("Record the answer in the required format."),
			Parameters:  shared.FunctionParameters(schema.Definition()),
		},
	}}
	params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
		OfChatCompletionNamedToolChoice: &openaisdk.ChatCompletionNamedToolChoiceParam{
			Function: openaisdk.ChatCompletionNamedToolChoiceFunctionParam{
				Name: schema.Name(),
			},
		},
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "response contained no choices")
	}

	toolCalls := completion.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "model did not produce structured output")
	}

	payload, err := schema.Validate([]byte(toolCalls[0].Function.Arguments))
	if err != nil {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model,
			"structured payload failed schema validation: "+err.Error())
	}

	return &provider.Result{
		Structured: payload,
		Usage:      usageOf(completion),
	}, nil
}

func (p *Provider) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, provider.UnsupportedCapability(p.Name(), p.cfg.Model, "embeddings")
}

func (p *Provider) buildParams(msgs []provider.Message, opts provider.Options) (openaisdk.ChatCompletionNewParams, error) {
	converted, err := convertMessages(msgs)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.cfg.Model),
		Messages: converted,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = param.NewOpt(*opts.Temperature)
	}
	return params, nil
}

func convertMessages(msgs []provider.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		case provider.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.RoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		default:
			return nil, sarathierr.Errorf(sarathierr.CodeProviderRequestInvalid,
				"groq: unsupported message role %q", msg.Role)
		}
	}
	return result, nil
}

func convertTools(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.InputSchema),
			},
		})
	}
	return result
}

func (p *Provider) classify(err error) error {
	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		return provider.Classify(p.Name(), p.cfg.Model, apierr.StatusCode, err)
	}
	return provider.Classify(p.Name(), p.cfg.Model, 0, err)
}

func usageOf(completion *openaisdk.ChatCompletion) provider.Usage {
	return provider.Usage{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}
}
