// Package provider implements the concrete provider.Registry described in
// spec.md §4.3, dispatching Open calls to the per-provider Openers under
// features/provider/{cloudwatch,prometheus,github} and deriving
// ListCapabilities from the workspace's configured, healthy integrations.
package provider

import (
	"context"
	"fmt"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	rcaprovider "github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

// capabilitiesByProvider is the fixed capability set each provider exposes,
// spec.md §4.3's provider/capability matrix.
var capabilitiesByProvider = map[domain.IntegrationProvider][]rcaprovider.Capability{
	domain.IntegrationCloudWatch: {rcaprovider.CapLogsSearch, rcaprovider.CapLogsErrors},
	domain.IntegrationPrometheus: {rcaprovider.CapMetricsQuery, rcaprovider.CapMetricsCPU, rcaprovider.CapMetricsMemory, rcaprovider.CapMetricsLatency},
	domain.IntegrationGitHub:     {rcaprovider.CapCodeRead, rcaprovider.CapCodeSearch, rcaprovider.CapCodeListCommits, rcaprovider.CapCodeListRepos},
}

// Registry implements rcaprovider.Registry, routing Open calls to the
// per-provider Opener keyed by provider name and filtering ListCapabilities
// by the workspace's configured, healthy integrations.
type Registry struct {
	credentials domain.IntegrationCredentialStore
	openers     map[rcaprovider.Name]rcaprovider.Opener
}

// New builds a Registry wired to every known provider Opener. Any of
// cloudwatch/prometheus/github may be nil, in which case that provider is
// simply never offered (e.g. a deployment without AWS access configured at
// all).
func New(credentials domain.IntegrationCredentialStore, cloudwatch, prometheus, github rcaprovider.Opener) *Registry {
	openers := make(map[rcaprovider.Name]rcaprovider.Opener, 3)
	if cloudwatch != nil {
		openers[rcaprovider.Name(domain.IntegrationCloudWatch)] = cloudwatch
	}
	if prometheus != nil {
		openers[rcaprovider.Name(domain.IntegrationPrometheus)] = prometheus
	}
	if github != nil {
		openers[rcaprovider.Name(domain.IntegrationGitHub)] = github
	}
	return &Registry{credentials: credentials, openers: openers}
}

// ListCapabilities implements rcaprovider.Registry.ListCapabilities:
// workspace-configured integrations whose last health check did not fail,
// expanded to their full (provider, capability) handle set.
func (r *Registry) ListCapabilities(ctx context.Context, workspace string) ([]rcaprovider.Handle, error) {
	creds, err := r.credentials.ListCredentials(ctx, workspace)
	if err != nil {
		return nil, err
	}
	var handles []rcaprovider.Handle
	for _, cred := range creds {
		if cred.Health == domain.HealthFailed {
			continue
		}
		if _, ok := r.openers[rcaprovider.Name(cred.Provider)]; !ok {
			continue
		}
		for _, capability := range capabilitiesByProvider[cred.Provider] {
			handles = append(handles, rcaprovider.Handle{Provider: rcaprovider.Name(cred.Provider), Capability: capability})
		}
	}
	return handles, nil
}

// Open implements rcaprovider.Registry.Open, binding workspace credentials
// into a ready-to-call Adapter via the handle's provider-specific Opener.
func (r *Registry) Open(ctx context.Context, workspace string, h rcaprovider.Handle) (rcaprovider.Adapter, error) {
	opener, ok := r.openers[h.Provider]
	if !ok {
		return nil, fmt.Errorf("provider: no opener configured for %q", h.Provider)
	}
	return opener.Open(ctx, workspace, h)
}
