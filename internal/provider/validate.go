// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// Name identifies a supported backend for key validation.
type Name string

const (
	NameOpenAI    Name = "openai"
	NameGroq      Name = "groq"
	NameGoogle    Name = "google"
	NameAnthropic Name = "anthropic"
)

// ValidateKey makes a lightweight HTTP call to the backend's models
// endpoint to confirm the API key is valid. Used by the doctor command,
// not on the request path.
func ValidateKey(ctx context.Context, client *http.Client, name Name, key string) error {
	url, headers, err := keyCheckEndpoint(name, key)
	if err != nil {
		return err
	}
	return checkEndpoint(ctx, client, name, url, headers)
}

// ValidateKeyWithURL is a testable variant of ValidateKey. When url is
// non-empty it overrides the backend default.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, name Name, key, url string) error {
	if url == "" {
		return ValidateKey(ctx, client, name, key)
	}
	_, headers, err := keyCheckEndpoint(name, key)
	if err != nil {
		return err
	}
	return checkEndpoint(ctx, client, name, url, headers)
}

func keyCheckEndpoint(name Name, key string) (string, map[string]string, error) {
	switch name {
	case NameOpenAI:
		return "https://api.openai.com/v1/models",
			map[string]string{"Authorization": "Bearer " + key}, nil
	case NameGroq:
		return "https://api.groq.com/openai/v1/models",
			map[string]string{"Authorization": "Bearer " + key}, nil
	case NameAnthropic:
		return "https://api.anthropic.com/v1/models",
			map[string]string{
				"x-api-key":         key,
				"anthropic-version": "2023-06-01",
			}, nil
	case NameGoogle:
		// The Generative Language API authenticates via query parameter;
		// there is no header-based alternative.
		return "https://generativelanguage.googleapis.com/v1/models?key=" + key, nil, nil
	default:
		return "", nil, sarathierr.Errorf(sarathierr.CodeProviderKeyInvalid, "unknown provider: %s", name)
	}
}

func checkEndpoint(ctx context.Context, client *http.Client, name Name, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return sarathierr.Errorf(sarathierr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return sarathierr.Errorf(sarathierr.CodeProviderKeyCheckFailed, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return sarathierr.Errorf(sarathierr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return sarathierr.Errorf(sarathierr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}

	return nil
}
