// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

// Package config loads and validates the process configuration from a
// YAML file and SARATHI_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// ProviderConfig is one provider block. A provider participates only when
// Enabled is true and an API key is present.
type ProviderConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Priority       int    `mapstructure:"priority"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// FallbackConfig tunes the manager's fallback traversal.
type FallbackConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	Threshold  float64       `mapstructure:"threshold"`
	MinSamples int64         `mapstructure:"min_samples"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig tunes process logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full process configuration.
type Config struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Fallback  FallbackConfig            `mapstructure:"fallback"`
	Breaker   BreakerConfig             `mapstructure:"breaker"`
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
}

// KnownProviders are the provider names the loader accepts, in default
// priority order.
var KnownProviders = []string{"openai", "groq", "google", "anthropic"}

// Load reads configuration from the given file (optional), environment
// variables, and defaults. A missing file is only an error when a path
// was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SARATHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sarathierr.Wrapf(err, sarathierr.CodeConfigLoadFailure,
				"reading config file %s", path)
		}
	} else {
		// SetConfigType is intentionally omitted: when set, viper also
		// tries the bare config name without extension, which collides
		// with the ./sarathi binary in the project root.
		v.SetConfigName("sarathi")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sarathi")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, sarathierr.Wrapf(err, sarathierr.CodeConfigLoadFailure, "reading config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sarathierr.Wrapf(err, sarathierr.CodeConfigLoadFailure, "unmarshaling config")
	}
	return &cfg, nil
}

// setDefaults registers every known key so environment variables bind
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	for i, name := range KnownProviders {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"model", defaultModel(name))
		v.SetDefault(prefix+"priority", i+1)
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"embedding_model", "")
	}

	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.timeout", 60*time.Second)

	v.SetDefault("breaker.threshold", 0.5)
	v.SetDefault("breaker.min_samples", 4)
	v.SetDefault("breaker.cooldown", 5*time.Minute)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultModel(name string) string {
	switch name {
	case "openai":
		return "gpt-4o-mini"
	case "groq":
		return "llama-3.3-70b-versatile"
	case "google":
		return "gemini-2.0-flash"
	case "anthropic":
		return "claude-sonnet-4-5"
	default:
		return ""
	}
}

// Validate checks the whole configuration and reports every problem at
// once rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	for name, pc := range c.Providers {
		if !known(name) {
			problems = append(problems, fmt.Sprintf("providers.%s: unknown provider", name))
			continue
		}
		if !pc.Enabled {
			continue
		}
		if pc.Model == "" {
			problems = append(problems, fmt.Sprintf("providers.%s.model: must not be empty", name))
		}
		if pc.Priority < 0 {
			problems = append(problems, fmt.Sprintf("providers.%s.priority: must be non-negative, got %d", name, pc.Priority))
		}
	}

	if c.Fallback.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("fallback.timeout: must be non-negative, got %s", c.Fallback.Timeout))
	}

	if c.Breaker.Threshold <= 0 || c.Breaker.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("breaker.threshold: must be in (0, 1], got %v", c.Breaker.Threshold))
	}
	if c.Breaker.MinSamples < 1 {
		problems = append(problems, fmt.Sprintf("breaker.min_samples: must be at least 1, got %d", c.Breaker.MinSamples))
	}
	if c.Breaker.Cooldown <= 0 {
		problems = append(problems, fmt.Sprintf("breaker.cooldown: must be positive, got %s", c.Breaker.Cooldown))
	}

	if c.Server.Listen == "" {
		problems = append(problems, "server.listen: must not be empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		problems = append(problems, fmt.Sprintf("server.shutdown_timeout: must be non-negative, got %s", c.Server.ShutdownTimeout))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level: must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: must be text or json, got %q", c.Log.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return sarathierr.New(sarathierr.CodeConfigValidateInvalidValue,
		"invalid configuration: "+strings.Join(problems, "; "))
}

func known(name string) bool {
	for _, k := range KnownProviders {
		if k == name {
			return true
		}
	}
	return false
}
