// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sarathi-ai/sarathi/internal/manager"
	"github.com/sarathi-ai/sarathi/internal/provider"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// GenerateBody is the request body for the generate operation. Tools and
// OutputSchema are mutually exclusive.
type GenerateBody struct {
	Messages    []provider.Message        `json:"messages" doc:"Conversation messages in order"`
	Temperature *float64                  `json:"temperature,omitempty" doc:"Sampling temperature"`
	MaxTokens   int                       `json:"max_tokens,omitempty" doc:"Maximum output tokens"`
	Tools       []provider.ToolDefinition `json:"tools,omitempty" doc:"Tools the model may call"`
	OutputName  string                    `json:"output_name,omitempty" doc:"Name for the output schema"`
	OutputJSON  map[string]any            `json:"output_schema,omitempty" doc:"JSON Schema constraining the output"`
}

type GenerateInput struct {
	Body GenerateBody
}

type GenerateOutput struct {
	Body provider.Result
}

type EmbedInput struct {
	Body struct {
		Text string `json:"text" doc:"Text to embed"`
	}
}

type EmbedOutput struct {
	Body struct {
		Embedding []float64 `json:"embedding"`
	}
}

type StatsOutput struct {
	Body manager.Stats
}

type ProvidersOutput struct {
	Body struct {
		Providers []manager.ProviderInfo `json:"providers"`
	}
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

type HealthResponse struct {
	Body HealthBody
}

func (s *Server) registerOperations() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/v1/generate",
		Summary:     "Generate a completion with automatic provider fallback",
		Tags:        []string{"generation"},
	}, s.handleGenerate)

	huma.Register(s.api, huma.Operation{
		OperationID: "embed",
		Method:      http.MethodPost,
		Path:        "/v1/embed",
		Summary:     "Generate an embedding vector",
		Tags:        []string{"generation"},
	}, s.handleEmbed)

	huma.Register(s.api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/v1/stats",
		Summary:     "Aggregate request statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "providers",
		Method:      http.MethodGet,
		Path:        "/v1/providers",
		Summary:     "Configured providers and their health",
		Tags:        []string{"system"},
	}, s.handleProviders)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})
}

func (s *Server) handleGenerate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	req := &manager.Request{
		Messages:    input.Body.Messages,
		Temperature: input.Body.Temperature,
		MaxTokens:   input.Body.MaxTokens,
		Tools:       input.Body.Tools,
	}

	if input.Body.OutputJSON != nil {
		name := input.Body.OutputName
		if name == "" {
			name = "output"
		}
		schema, err := provider.NewOutputSchema(name, input.Body.OutputJSON)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid output schema", err)
		}
		req.Schema = schema
	}

	result, err := s.backend.Invoke(ctx, req)
	if err != nil {
		return nil, asHumaError(err)
	}
	return &GenerateOutput{Body: *result}, nil
}

func (s *Server) handleEmbed(ctx context.Context, input *EmbedInput) (*EmbedOutput, error) {
	vec, err := s.backend.Embed(ctx, input.Body.Text)
	if err != nil {
		return nil, asHumaError(err)
	}

	out := &EmbedOutput{}
	out.Body.Embedding = vec
	return out, nil
}

func (s *Server) handleStats(_ context.Context, _ *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: s.backend.Stats()}, nil
}

func (s *Server) handleProviders(_ context.Context, _ *struct{}) (*ProvidersOutput, error) {
	out := &ProvidersOutput{}
	out.Body.Providers = s.backend.Providers()
	return out, nil
}

// asHumaError maps domain errors onto HTTP status codes. The message is
// the domain error's text, which never carries raw backend responses.
func asHumaError(err error) error {
	return huma.NewError(sarathierr.HTTPStatus(err), err.Error())
}
