// Package provider defines the capability vocabulary and the Provider
// Registry capability described in spec.md §4.3: for a workspace, which
// (provider, capability) pairs are available, and how to open a
// credential-bound Adapter for one of them.
package provider

import (
	"context"
	"fmt"
)

// Capability is one of the fixed observability/code-host operations a
// provider adapter may implement.
type Capability string

const (
	CapLogsSearch      Capability = "logs.search"
	CapLogsErrors      Capability = "logs.errors"
	CapMetricsQuery    Capability = "metrics.query"
	CapMetricsCPU      Capability = "metrics.cpu"
	CapMetricsMemory   Capability = "metrics.memory"
	CapMetricsLatency  Capability = "metrics.latency"
	CapCodeRead        Capability = "code.read"
	CapCodeSearch      Capability = "code.search"
	CapCodeListCommits Capability = "code.list_commits"
	CapCodeListRepos   Capability = "code.list_repos"
)

// Name is a provider's identifier, e.g. "cloudwatch", "prometheus", "github".
type Name string

// Handle is one (provider, capability) pair available in a workspace.
type Handle struct {
	Provider   Name
	Capability Capability
}

// ToolName is the stable LLM-visible tool identifier for this handle,
// spec.md §4.3's "<capability>.<provider>" naming (e.g.
// "logs.search.cloudwatch") used when more than one provider offers the
// same capability.
func (h Handle) ToolName() string {
	return fmt.Sprintf("%s.%s", h.Capability, h.Provider)
}

// Adapter holds decrypted credentials for the lifetime of one tool call and
// executes a single capability against the underlying integration.
type Adapter interface {
	Capability() Capability
	Provider() Name
	// Call executes the capability with the given already-validated input
	// and returns raw result data for the owning Tool to format into an
	// Observation. A non-nil error here always means an adapter-level
	// failure (upstream unavailable, auth rejected, timeout) — the Tool
	// wrapper, not the adapter, turns it into an ERROR: Observation.
	Call(ctx context.Context, input []byte) ([]byte, error)
}

// Opener constructs a credential-bound Adapter for one handle in one
// workspace. Implementations live under features/provider/*.
type Opener interface {
	Open(ctx context.Context, workspace string, h Handle) (Adapter, error)
}

// Registry is the Provider Registry capability of spec.md §4.3: workspace
// isolation is enforced here — tools never accept a workspace argument from
// the model, it is bound at dispatch time by whoever calls Open.
type Registry interface {
	// ListCapabilities returns the (provider, capability) pairs available to
	// workspace, excluding integrations whose last health check failed.
	ListCapabilities(ctx context.Context, workspace string) ([]Handle, error)
	Open(ctx context.Context, workspace string, h Handle) (Adapter, error)
}
