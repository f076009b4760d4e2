// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package config

import (
	"log/slog"
	"os"

	"github.com/sarathi-ai/sarathi/internal/manager"
	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/internal/provider/anthropic"
	"github.com/sarathi-ai/sarathi/internal/provider/google"
	"github.com/sarathi-ai/sarathi/internal/provider/groq"
	"github.com/sarathi-ai/sarathi/internal/provider/openai"
	"github.com/sarathi-ai/sarathi/internal/telemetry"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// NewLogger builds a slog.Logger from the log block.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// healthConfig maps the breaker block onto per-provider tracker tuning.
func (c *Config) healthConfig() provider.HealthConfig {
	return provider.HealthConfig{
		ErrorThreshold: c.Breaker.Threshold,
		MinSamples:     c.Breaker.MinSamples,
		Cooldown:       c.Breaker.Cooldown,
	}
}

// BuildProviders constructs every enabled provider that has an API key.
// Providers without a key are skipped with a warning so a partial
// deployment still comes up; having none at all is an error.
func (c *Config) BuildProviders(logger *slog.Logger) ([]provider.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var providers []provider.Provider
	for _, name := range KnownProviders {
		pc, ok := c.Providers[name]
		if !ok || !pc.Enabled {
			continue
		}
		if pc.APIKey == "" {
			logger.Warn("provider has no api key, skipping", "provider", name)
			continue
		}

		p, err := buildProvider(name, pc, c.healthConfig())
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
		logger.Info("provider configured",
			"provider", name, "model", pc.Model, "priority", pc.Priority)
	}

	if len(providers) == 0 {
		return nil, sarathierr.New(sarathierr.CodeProviderNotFound,
			"no provider is configured with an api key")
	}
	return providers, nil
}

func buildProvider(name string, pc ProviderConfig, hc provider.HealthConfig) (provider.Provider, error) {
	switch name {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         pc.APIKey,
			Model:          pc.Model,
			Priority:       pc.Priority,
			BaseURL:        pc.BaseURL,
			EmbeddingModel: pc.EmbeddingModel,
			Health:         hc,
		})
	case "groq":
		return groq.New(groq.Config{
			APIKey:   pc.APIKey,
			Model:    pc.Model,
			Priority: pc.Priority,
			BaseURL:  pc.BaseURL,
			Health:   hc,
		})
	case "google":
		return google.New(google.Config{
			APIKey:         pc.APIKey,
			Model:          pc.Model,
			Priority:       pc.Priority,
			EmbeddingModel: pc.EmbeddingModel,
			Health:         hc,
		})
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:   pc.APIKey,
			Model:    pc.Model,
			Priority: pc.Priority,
			BaseURL:  pc.BaseURL,
			Health:   hc,
		})
	default:
		return nil, sarathierr.Errorf(sarathierr.CodeProviderNotFound,
			"unknown provider %q", name)
	}
}

// BuildManager wires providers, the manager, and metrics from this
// configuration.
func (c *Config) BuildManager(logger *slog.Logger, metrics *telemetry.Collector) (*manager.Manager, error) {
	providers, err := c.BuildProviders(logger)
	if err != nil {
		return nil, err
	}
	return manager.New(providers, manager.Config{
		EnableFallback: c.Fallback.Enabled,
		Timeout:        c.Fallback.Timeout,
	}, logger, metrics)
}
