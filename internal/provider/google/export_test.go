// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package google

import (
	"google.golang.org/genai"

	"github.com/sarathi-ai/sarathi/internal/provider"
)

var ConvertTools = convertTools

func (p *Provider) BuildRequest(msgs []provider.Message, opts provider.Options) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	return p.buildRequest(msgs, opts)
}
