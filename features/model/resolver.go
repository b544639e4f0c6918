// Package model wires the concrete provider clients under
// features/model/{anthropic,openai,gemini} to a domain.LLMConfig per
// spec.md §4.5's provider-selection algorithm, wrapping each in a
// model.Gateway for the retry/rate-limit middleware the teacher's
// features/model/gateway/server.go composes around every provider variant.
package model

import (
	"context"
	"fmt"

	"github.com/akshatgg/vibe-monitor-back/features/model/anthropic"
	"github.com/akshatgg/vibe-monitor-back/features/model/gateway"
	"github.com/akshatgg/vibe-monitor-back/features/model/gemini"
	"github.com/akshatgg/vibe-monitor-back/features/model/openai"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	rcamodel "github.com/akshatgg/vibe-monitor-back/internal/rca/model"
)

// PlatformConfig is the operator-configured default backend used when a
// workspace's LLMConfig.Provider is domain.LLMPlatform (no BYO-LLM
// configured), spec.md §4.5 step 1.
type PlatformConfig struct {
	APIKey       string
	DefaultModel string
	MaxTokens    int
}

// Resolver implements worker.ModelResolver, building a retry/rate-limited
// Gateway client for whichever provider the workspace's LLMConfig names.
type Resolver struct {
	Platform PlatformConfig

	// RetryAttempts configures the Gateway's retry middleware and
	// RatePerSecond its rate limiter; zero values fall back to
	// DefaultRetryAttempts/defaultRatePerSecond.
	RetryAttempts  int
	RatePerSecond  float64
}

const (
	// DefaultRetryAttempts matches spec.md §4.5's stated backoff policy for
	// rate-limited upstream calls.
	DefaultRetryAttempts = 3
	defaultRatePerSecond = 5
)

// Resolve implements worker.ModelResolver.Resolve.
func (r *Resolver) Resolve(ctx context.Context, cfg domain.LLMConfig) (rcamodel.Client, error) {
	client, err := r.buildProviderClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rate := r.RatePerSecond
	if rate <= 0 {
		rate = defaultRatePerSecond
	}
	attempts := r.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	gw, err := rcamodel.NewGateway(
		rcamodel.WithProvider(client),
		rcamodel.WithUnary(
			rcamodel.RetryUnary(attempts, 0, nil),
			rcamodel.RateLimitUnary(rcamodel.NewDefaultLimiter(rate)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}
	return gateway.New(gw), nil
}

func (r *Resolver) buildProviderClient(ctx context.Context, cfg domain.LLMConfig) (rcamodel.Client, error) {
	switch cfg.Provider {
	case domain.LLMPlatform:
		if r.Platform.APIKey == "" {
			return nil, fmt.Errorf("resolve model: platform LLM is not configured")
		}
		model := cfg.Model
		if model == "" {
			model = r.Platform.DefaultModel
		}
		return anthropic.NewFromAPIKey(r.Platform.APIKey, model, r.Platform.MaxTokens)
	case domain.LLMOpenAI:
		return openai.NewFromAPIKey(cfg.APIKey, cfg.Model)
	case domain.LLMAzureOpenAI:
		return openai.NewFromAzureConfig(cfg.APIKey, cfg.BaseURL, cfg.APIVersion, cfg.Model)
	case domain.LLMGemini:
		return gemini.NewFromAPIKey(ctx, cfg.APIKey, cfg.Model, 0)
	default:
		return nil, fmt.Errorf("resolve model: unsupported provider %q", cfg.Provider)
	}
}
