// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package google

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genai"

	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

const defaultEmbeddingModel = "text-embedding-004"

// Config holds Google provider configuration.
type Config struct {
	APIKey         string
	Model          string
	Priority       int
	EmbeddingModel string
	Health         provider.HealthConfig
}

// Provider implements provider.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
	cfg    Config
	health *provider.HealthTracker
}

// New creates a Google provider. Returns an error if the API key or model
// is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"google: missing api_key in config", sarathierr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid,
			"google: missing model in config", sarathierr.FieldProvider("google"))
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderUnavailable, "google: creating client")
	}

	health, err := provider.NewHealthTracker(cfg.Health)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: client,
		cfg:    cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string                    { return "google" }
func (p *Provider) Model() string                   { return p.cfg.Model }
func (p *Provider) Priority() int                   { return p.cfg.Priority }
func (p *Provider) Health() *provider.HealthTracker { return p.health }
func (p *Provider) Close() error                    { return nil }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Tools:            true,
		StructuredOutput: true,
		Embeddings:       true,
	}
}

func (p *Provider) Generate(ctx context.Context, msgs []provider.Message, opts provider.Options) (*provider.Result, error) {
	contents, config, err := p.buildRequest(msgs, opts)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		return nil, p.classify(err)
	}

	text, err := p.textOf(resp)
	if err != nil {
		return nil, err
	}

	return &provider.Result{
		Text:  text,
		Usage: usageOf(resp),
	}, nil
}

func (p *Provider) GenerateWithTools(ctx context.Context, msgs []provider.Message, tools []provider.ToolDefinition, opts provider.Options) (*provider.Result, error) {
	contents, config, err := p.buildRequest(msgs, opts)
	if err != nil {
		return nil, err
	}
	config.Tools = convertTools(tools)

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model, "response contained no candidates")
	}

	result := &provider.Result{Usage: usageOf(resp)}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.Text += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, provider.Unavailable(p.Name(), p.cfg.Model,
					"malformed tool call arguments: "+err.Error())
			}
			result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}
	return result, nil
}

func (p *Provider) GenerateStructured(ctx context.Context, msgs []provider.Message, schema *provider.OutputSchema, opts provider.Options) (*provider.Result, error) {
	contents, config, err := p.buildRequest(msgs, opts)
	if err != nil {
		return nil, err
	}
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = schema.Definition()

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		return nil, p.classify(err)
	}

	text, err := p.textOf(resp)
	if err != nil {
		return nil, err
	}

	payload, err := schema.Validate([]byte(text))
	if err != nil {
		return nil, provider.Unavailable(p.Name(), p.cfg.Model,
			"structured payload failed schema validation: "+err.Error())
	}

	return &provider.Result{
		Structured: payload,
		Usage:      usageOf(resp),
	}, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.Models.EmbedContent(ctx, p.cfg.EmbeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, provider.Unavailable(p.Name(), p.cfg.EmbeddingModel, "embedding response contained no values")
	}

	values := make([]float64, len(resp.Embeddings[0].Values))
	for i, v := range resp.Embeddings[0].Values {
		values[i] = float64(v)
	}
	return values, nil
}

// buildRequest converts messages and options into genai contents and config.
// System messages become the system instruction; the Gemini API has no
// system role in the content list.
func (p *Provider) buildRequest(msgs []provider.Message, opts provider.Options) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	var contents []*genai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Content}},
			}
		case provider.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case provider.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			return nil, nil, sarathierr.Errorf(sarathierr.CodeProviderRequestInvalid,
				"google: unsupported message role %q", msg.Role)
		}
	}
	return contents, config, nil
}

// convertTools transforms provider.ToolDefinition slices into genai.Tool
// slices.
func convertTools(tools []provider.ToolDefinition) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return []*genai.Tool{
		{FunctionDeclarations: decls},
	}
}

// textOf extracts the concatenated text of the first candidate.
func (p *Provider) textOf(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", provider.Unavailable(p.Name(), p.cfg.Model, "response contained no candidates")
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

// classify maps an SDK error onto the provider failure taxonomy.
func (p *Provider) classify(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return provider.Classify(p.Name(), p.cfg.Model, apierr.Code, err)
	}
	return provider.Classify(p.Name(), p.cfg.Model, 0, err)
}

func usageOf(resp *genai.GenerateContentResponse) provider.Usage {
	if resp.UsageMetadata == nil {
		return provider.Usage{}
	}
	return provider.Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
