// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

// Package manager orchestrates invocation across a fixed, priority-ordered
// set of providers, falling back to the next provider when one fails and
// aggregating a terminal error when all of them do.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sarathi-ai/sarathi/internal/provider"
	"github.com/sarathi-ai/sarathi/internal/telemetry"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

// Mode names the invocation shape of a request.
type Mode string

const (
	ModeGenerate   Mode = "generate"
	ModeTools      Mode = "tools"
	ModeStructured Mode = "structured"
	ModeEmbed      Mode = "embed"
)

// Config tunes the manager.
type Config struct {
	// EnableFallback controls whether a provider failure moves on to the
	// next provider. When false the first failure is terminal.
	EnableFallback bool
	// Timeout bounds each request across all fallback attempts. Zero
	// means no manager-imposed deadline.
	Timeout time.Duration
}

// Request is a single generation request. Tools and Schema are mutually
// exclusive; setting neither means plain text generation.
type Request struct {
	Messages    []provider.Message
	Temperature *float64
	MaxTokens   int
	Tools       []provider.ToolDefinition
	Schema      *provider.OutputSchema
}

// Mode reports the invocation mode the request resolves to.
func (r *Request) Mode() Mode {
	switch {
	case r.Schema != nil:
		return ModeStructured
	case len(r.Tools) > 0:
		return ModeTools
	default:
		return ModeGenerate
	}
}

// Validate checks request shape before any provider is contacted.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return sarathierr.New(sarathierr.CodeManagerRequestInvalid,
			"request must contain at least one message")
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case provider.RoleSystem, provider.RoleUser, provider.RoleAssistant:
		default:
			return sarathierr.Errorf(sarathierr.CodeManagerRequestInvalid,
				"message %d has unsupported role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return sarathierr.Errorf(sarathierr.CodeManagerRequestInvalid,
				"message %d has empty content", i)
		}
	}
	if len(r.Tools) > 0 && r.Schema != nil {
		return sarathierr.New(sarathierr.CodeManagerRequestInvalid,
			"tools and output schema are mutually exclusive")
	}
	if r.MaxTokens < 0 {
		return sarathierr.Errorf(sarathierr.CodeManagerRequestInvalid,
			"max_tokens must be non-negative, got %d", r.MaxTokens)
	}
	return nil
}

func (r *Request) options() provider.Options {
	return provider.Options{
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

// Manager routes requests across providers in ascending priority order.
// The provider set is fixed at construction; per-provider health evolves
// through each provider's own tracker.
type Manager struct {
	providers []provider.Provider
	cfg       Config
	logger    *slog.Logger
	metrics   *telemetry.Collector
	stats     stats
}

// New creates a Manager over the given providers, sorted by ascending
// priority (lower number tried first). Order among equal priorities
// follows the input order.
func New(providers []provider.Provider, cfg Config, logger *slog.Logger, metrics *telemetry.Collector) (*Manager, error) {
	if len(providers) == 0 {
		return nil, sarathierr.New(sarathierr.CodeProviderNotFound,
			"manager requires at least one provider")
	}
	if cfg.Timeout < 0 {
		return nil, sarathierr.Errorf(sarathierr.CodeConfigValidateInvalidValue,
			"manager timeout must be non-negative, got %s", cfg.Timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sorted := make([]provider.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	return &Manager{
		providers: sorted,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Invoke runs the request against the first eligible provider, falling
// back in priority order on failure. Providers with an open circuit or
// without the capability the request needs are skipped without counting
// as attempts.
func (m *Manager) Invoke(ctx context.Context, req *Request) (*provider.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.stats.total.Add(1)

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	mode := req.Mode()
	var failures []string
	attempted := 0

	for _, p := range m.providers {
		if !eligible(p, mode) {
			m.logger.Debug("skipping provider without capability",
				"provider", p.Name(), "mode", string(mode))
			continue
		}
		if !p.Health().IsAvailable() {
			m.logger.Debug("skipping provider with open circuit",
				"provider", p.Name(), "state", string(p.Health().State()))
			failures = append(failures, p.Name()+": circuit_open")
			continue
		}

		attempted++
		start := time.Now()
		result, err := invoke(ctx, p, req, mode)
		elapsed := time.Since(start)

		if err == nil {
			p.Health().RecordSuccess()
			m.metrics.ObserveRequest(p.Name(), string(mode), "success", elapsed)
			m.stats.successful.Add(1)
			if attempted > 1 {
				m.stats.fallbacks.Add(1)
				m.metrics.RecordFallback()
			}
			m.logger.Info("request served",
				"provider", p.Name(), "model", p.Model(),
				"mode", string(mode), "fallback", attempted > 1,
				"duration", elapsed)

			result.Provider = p.Name()
			result.Model = p.Model()
			return result, nil
		}

		// Cancellation is the caller's doing, not the provider's fault.
		// Hand back any probe slot the availability check claimed so the
		// next caller can still probe.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.Health().ReleaseProbe()
			m.logger.Debug("request cancelled", "provider", p.Name())
			return nil, err
		}

		m.recordError(p, err)
		m.metrics.ObserveRequest(p.Name(), string(mode), "error", elapsed)
		m.logger.Warn("provider failed",
			"provider", p.Name(), "model", p.Model(),
			"mode", string(mode), "kind", kindOf(err), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %s", p.Name(), kindOf(err)))

		if !m.cfg.EnableFallback {
			m.stats.failed.Add(1)
			m.metrics.RecordExhaustion(string(mode))
			return nil, err
		}
	}

	m.stats.failed.Add(1)
	m.metrics.RecordExhaustion(string(mode))
	return nil, m.exhausted(mode, attempted, failures)
}

// Embed generates an embedding with the first available provider that
// supports embeddings, falling back in priority order.
func (m *Manager) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, sarathierr.New(sarathierr.CodeManagerRequestInvalid,
			"embed text must not be empty")
	}

	m.stats.total.Add(1)

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	var failures []string
	attempted := 0

	for _, p := range m.providers {
		if !p.Capabilities().Embeddings {
			continue
		}
		if !p.Health().IsAvailable() {
			failures = append(failures, p.Name()+": circuit_open")
			continue
		}

		attempted++
		start := time.Now()
		vec, err := p.Embed(ctx, text)
		elapsed := time.Since(start)

		if err == nil {
			p.Health().RecordSuccess()
			m.metrics.ObserveRequest(p.Name(), string(ModeEmbed), "success", elapsed)
			m.stats.successful.Add(1)
			if attempted > 1 {
				m.stats.fallbacks.Add(1)
				m.metrics.RecordFallback()
			}
			return vec, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.Health().ReleaseProbe()
			return nil, err
		}

		m.recordError(p, err)
		m.metrics.ObserveRequest(p.Name(), string(ModeEmbed), "error", elapsed)
		m.logger.Warn("provider embed failed",
			"provider", p.Name(), "kind", kindOf(err), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %s", p.Name(), kindOf(err)))

		if !m.cfg.EnableFallback {
			m.stats.failed.Add(1)
			m.metrics.RecordExhaustion(string(ModeEmbed))
			return nil, err
		}
	}

	m.stats.failed.Add(1)
	m.metrics.RecordExhaustion(string(ModeEmbed))
	return nil, m.exhausted(ModeEmbed, attempted, failures)
}

// Providers returns a point-in-time view of every managed provider in
// priority order.
func (m *Manager) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(m.providers))
	for _, p := range m.providers {
		infos = append(infos, ProviderInfo{
			Name:         p.Name(),
			Model:        p.Model(),
			Priority:     p.Priority(),
			Capabilities: p.Capabilities(),
			Health:       p.Health().Snapshot(),
		})
	}
	return infos
}

// Close closes every provider and joins their errors.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return sarathierr.Join(errs...)
}

func invoke(ctx context.Context, p provider.Provider, req *Request, mode Mode) (*provider.Result, error) {
	switch mode {
	case ModeTools:
		return p.GenerateWithTools(ctx, req.Messages, req.Tools, req.options())
	case ModeStructured:
		return p.GenerateStructured(ctx, req.Messages, req.Schema, req.options())
	default:
		return p.Generate(ctx, req.Messages, req.options())
	}
}

func eligible(p provider.Provider, mode Mode) bool {
	caps := p.Capabilities()
	switch mode {
	case ModeTools:
		return caps.Tools
	case ModeStructured:
		return caps.StructuredOutput
	default:
		return true
	}
}

// recordError feeds the failure into the provider's tracker and notes a
// circuit trip if this error opened it.
func (m *Manager) recordError(p provider.Provider, _ error) {
	if p.Health().RecordError() {
		m.metrics.RecordCircuitOpen(p.Name())
		m.logger.Warn("circuit opened", "provider", p.Name())
	}
}

// exhausted builds the terminal error for a request no provider could
// serve. The message carries per-provider failure kinds, never raw
// backend responses.
func (m *Manager) exhausted(mode Mode, attempted int, failures []string) error {
	detail := "no provider was eligible"
	if len(failures) > 0 {
		detail = strings.Join(failures, "; ")
	}
	return sarathierr.New(sarathierr.CodeManagerExhausted,
		fmt.Sprintf("all providers exhausted: %s", detail),
		sarathierr.Field("mode", string(mode)),
		sarathierr.Field("attempted", attempted),
	)
}

// kindOf maps a classified provider error to its short failure kind.
func kindOf(err error) string {
	switch {
	case sarathierr.IsQuotaExceeded(err):
		return "quota_exceeded"
	case sarathierr.IsRateLimited(err):
		return "rate_limited"
	case sarathierr.IsUnavailable(err):
		return "unavailable"
	default:
		return "failure"
	}
}
