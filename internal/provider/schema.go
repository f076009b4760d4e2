// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package provider

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// OutputSchema is a caller-supplied JSON Schema that constrains structured
// generation. The schema is compiled once at construction; providers call
// Validate on the raw payload the backend returned and must treat a
// validation failure as a provider failure, never as a usable result.
type OutputSchema struct {
	name       string
	definition map[string]any
	compiled   *jsonschema.Schema
}

// NewOutputSchema compiles the given JSON Schema document. The name is
// used for backends that require a named response format.
func NewOutputSchema(name string, definition map[string]any) (*OutputSchema, error) {
	if name == "" {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid, "output schema name is required")
	}
	if len(definition) == 0 {
		return nil, sarathierr.New(sarathierr.CodeProviderRequestInvalid, "output schema definition is empty")
	}

	// Round-trip through JSON so the compiler sees the same value shapes
	// (json.Number etc.) it would when loading a schema document.
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid, "encoding schema %q", name)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid, "decoding schema %q", name)
	}

	compiler := jsonschema.NewCompiler()
	url := "schema://" + name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid, "registering schema %q", name)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid, "compiling schema %q", name)
	}

	return &OutputSchema{
		name:       name,
		definition: definition,
		compiled:   compiled,
	}, nil
}

// Name returns the schema's name.
func (s *OutputSchema) Name() string { return s.name }

// Definition returns the raw JSON Schema document, suitable for passing to
// a backend's response-format or tool-schema parameter.
func (s *OutputSchema) Definition() map[string]any { return s.definition }

// Validate checks that payload is valid JSON conforming to the schema and
// returns the payload on success.
func (s *OutputSchema) Validate(payload []byte) (json.RawMessage, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid,
			"structured payload is not valid JSON")
	}
	if err := s.compiled.Validate(value); err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeProviderRequestInvalid,
			"structured payload does not conform to schema %q", s.name)
	}
	return json.RawMessage(payload), nil
}
