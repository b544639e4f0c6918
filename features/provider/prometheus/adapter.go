// Package prometheus implements provider.Adapter/Opener for the metrics
// capabilities (CapMetricsQuery, CapMetricsCPU, CapMetricsMemory,
// CapMetricsLatency) over Prometheus's HTTP query API. The teacher only
// pulls in prometheus/client_golang for its own /metrics exposition
// (internal/observability/metrics.go in haasonsaas-nexus, same pattern this
// repository's telemetry package follows); the querying half used here,
// client_golang/api + client_golang/api/prometheus/v1, is the same module's
// other half rather than a new dependency.
package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

const providerName provider.Name = "prometheus"

// builtinQueries maps the fixed capabilities to a default PromQL expression,
// used when the tool call doesn't override Query.
var builtinQueries = map[provider.Capability]string{
	provider.CapMetricsCPU:     `avg(rate(process_cpu_seconds_total[5m]))`,
	provider.CapMetricsMemory:  `avg(process_resident_memory_bytes)`,
	provider.CapMetricsLatency: `histogram_quantile(0.99, sum(rate(http_request_duration_seconds_bucket[5m])) by (le))`,
}

// QueryAPI mirrors the subset of promv1.API the adapter needs, so unit tests
// can substitute a fake.
type QueryAPI interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...promv1.Option) (model.Value, promv1.Warnings, error)
}

// Opener constructs credential-bound Adapters from per-workspace
// domain.IntegrationCredential records.
type Opener struct {
	Credentials domain.IntegrationCredentialStore
}

// NewOpener builds an Opener. creds must not be nil.
func NewOpener(creds domain.IntegrationCredentialStore) *Opener {
	return &Opener{Credentials: creds}
}

// Open implements provider.Opener.Open for the prometheus provider.
func (o *Opener) Open(ctx context.Context, workspace string, h provider.Handle) (provider.Adapter, error) {
	if h.Provider != providerName {
		return nil, fmt.Errorf("prometheus: unsupported provider %q", h.Provider)
	}
	cred, err := o.Credentials.LoadCredential(ctx, workspace, domain.IntegrationPrometheus)
	if err != nil {
		return nil, err
	}
	if cred.BaseURL == "" {
		return nil, errors.New("prometheus: base_url is required")
	}
	client, err := api.NewClient(api.Config{
		Address:      cred.BaseURL,
		RoundTripper: newBearerTransport(cred.SecretValue),
	})
	if err != nil {
		return nil, fmt.Errorf("prometheus: new client: %w", err)
	}
	return &Adapter{api: promv1.NewAPI(client), capability: h.Capability}, nil
}

// Adapter implements provider.Adapter for one (workspace, capability) pair
// bound to a Prometheus query client.
type Adapter struct {
	api        QueryAPI
	capability provider.Capability
}

func (a *Adapter) Capability() provider.Capability { return a.capability }
func (a *Adapter) Provider() provider.Name          { return providerName }

type queryInput struct {
	Query string `json:"query,omitempty"`
	// TimeUnixMs evaluates the query at a specific instant; zero means now.
	TimeUnixMs int64 `json:"time_unix_ms,omitempty"`
}

type queryResult struct {
	ResultType string `json:"result_type"`
	Result     string `json:"result"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Call implements provider.Adapter.Call.
func (a *Adapter) Call(ctx context.Context, input []byte) ([]byte, error) {
	var in queryInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("prometheus: invalid input: %w", err)
		}
	}

	query := in.Query
	if query == "" {
		query = builtinQueries[a.capability]
	}
	if query == "" {
		return nil, fmt.Errorf("prometheus: no query available for capability %q", a.capability)
	}

	ts := time.Now()
	if in.TimeUnixMs > 0 {
		ts = time.UnixMilli(in.TimeUnixMs)
	}

	value, warnings, err := a.api.Query(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("prometheus: query: %w", err)
	}

	return json.Marshal(queryResult{
		ResultType: value.Type().String(),
		Result:     value.String(),
		Warnings:   warnings,
	})
}

// bearerTransport adds a bearer Authorization header to every request, for
// workspaces whose Prometheus endpoint sits behind an auth proxy.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func newBearerTransport(token string) http.RoundTripper {
	return &bearerTransport{token: token, base: http.DefaultTransport}
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}
