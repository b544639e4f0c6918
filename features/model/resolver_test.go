package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

func TestResolve_PlatformProviderWithoutAPIKeyFails(t *testing.T) {
	r := &Resolver{}

	_, err := r.Resolve(context.Background(), domain.LLMConfig{Provider: domain.LLMPlatform})
	require.Error(t, err)
}

func TestResolve_PlatformProviderUsesDefaultModelWhenUnset(t *testing.T) {
	r := &Resolver{Platform: PlatformConfig{APIKey: "sk-test", DefaultModel: "claude-3-5-sonnet", MaxTokens: 1024}}

	client, err := r.Resolve(context.Background(), domain.LLMConfig{Provider: domain.LLMPlatform})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestResolve_OpenAIRequiresAPIKey(t *testing.T) {
	r := &Resolver{}

	_, err := r.Resolve(context.Background(), domain.LLMConfig{Provider: domain.LLMOpenAI, Model: "gpt-4o"})
	require.Error(t, err)
}

func TestResolve_AzureOpenAIRequiresBaseURL(t *testing.T) {
	r := &Resolver{}

	_, err := r.Resolve(context.Background(), domain.LLMConfig{Provider: domain.LLMAzureOpenAI, APIKey: "sk-test", Model: "gpt-4o"})
	require.Error(t, err)
}

func TestResolve_UnsupportedProvider(t *testing.T) {
	r := &Resolver{}

	_, err := r.Resolve(context.Background(), domain.LLMConfig{Provider: domain.LLMProvider("unknown")})
	require.Error(t, err)
}
