// Package tools turns a workspace's available provider.Handle list into the
// react.ToolSet the Orchestrator Worker drives one Turn with: one
// tools.Tool per handle, named and schema'd per spec.md §4.3's
// "<capability>.<provider>" convention, wrapping a provider.Adapter opened
// from the Registry/Opener at build time. Grounded on internal/rca/tools'
// own Validator/Tool shapes; no teacher file builds an analogous per-call
// tool set since goa-ai's tool registry resolves tools at codegen time
// rather than from a live capability list.
package tools

import (
	"context"
	"fmt"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/react"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// schemaFor returns the JSON Schema describing the input a capability's
// adapter.Call expects, matching the request structs each
// features/provider/* adapter decodes.
var schemaFor = map[provider.Capability][]byte{
	provider.CapLogsSearch: []byte(`{
		"type": "object",
		"properties": {
			"log_group": {"type": "string", "description": "CloudWatch log group name"},
			"query": {"type": "string", "description": "Optional CloudWatch Logs filter pattern"},
			"start_time_unix_ms": {"type": "integer"},
			"end_time_unix_ms": {"type": "integer"},
			"limit": {"type": "integer"}
		},
		"required": ["log_group"]
	}`),
	provider.CapLogsErrors: []byte(`{
		"type": "object",
		"properties": {
			"log_group": {"type": "string", "description": "CloudWatch log group name"},
			"start_time_unix_ms": {"type": "integer"},
			"end_time_unix_ms": {"type": "integer"},
			"limit": {"type": "integer"}
		},
		"required": ["log_group"]
	}`),
	provider.CapMetricsQuery: []byte(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "PromQL instant-query expression"},
			"time_unix_ms": {"type": "integer"}
		},
		"required": ["query"]
	}`),
	provider.CapMetricsCPU: []byte(`{
		"type": "object",
		"properties": {"time_unix_ms": {"type": "integer"}}
	}`),
	provider.CapMetricsMemory: []byte(`{
		"type": "object",
		"properties": {"time_unix_ms": {"type": "integer"}}
	}`),
	provider.CapMetricsLatency: []byte(`{
		"type": "object",
		"properties": {"time_unix_ms": {"type": "integer"}}
	}`),
	provider.CapCodeRead: []byte(`{
		"type": "object",
		"properties": {
			"owner": {"type": "string"},
			"repo": {"type": "string"},
			"path": {"type": "string"},
			"ref": {"type": "string"}
		},
		"required": ["owner", "repo", "path"]
	}`),
	provider.CapCodeSearch: []byte(`{
		"type": "object",
		"properties": {"query": {"type": "string", "description": "GitHub code search query"}},
		"required": ["query"]
	}`),
	provider.CapCodeListCommits: []byte(`{
		"type": "object",
		"properties": {
			"owner": {"type": "string"},
			"repo": {"type": "string"},
			"path": {"type": "string"}
		},
		"required": ["owner", "repo"]
	}`),
	provider.CapCodeListRepos: []byte(`{
		"type": "object",
		"properties": {"org": {"type": "string"}},
		"required": ["org"]
	}`),
}

var descriptionFor = map[provider.Capability]string{
	provider.CapLogsSearch:      "Search application logs with a filter pattern.",
	provider.CapLogsErrors:      "List recent error-level log entries.",
	provider.CapMetricsQuery:    "Run a custom metrics query.",
	provider.CapMetricsCPU:      "Read recent CPU utilization.",
	provider.CapMetricsMemory:   "Read recent memory utilization.",
	provider.CapMetricsLatency:  "Read recent request latency (p99).",
	provider.CapCodeRead:        "Read a file or directory listing from a repository.",
	provider.CapCodeSearch:      "Search source code across a repository or organization.",
	provider.CapCodeListCommits: "List recent commits for a repository or path.",
	provider.CapCodeListRepos:   "List repositories in an organization.",
}

// Builder implements worker.ToolBuilder, opening one Adapter per handle and
// wrapping it as a tools.Tool named per spec.md §4.3.
type Builder struct{}

// NewBuilder returns a Builder. It carries no state: every workspace's tool
// set is rebuilt fresh from its current handle list each Turn.
func NewBuilder() *Builder { return &Builder{} }

// Build implements worker.ToolBuilder.Build.
func (b *Builder) Build(ctx context.Context, workspace string, handles []provider.Handle, opener provider.Opener) (react.ToolSet, error) {
	set := &ToolSet{tools: make(map[tools.Ident]tools.Tool, len(handles))}
	for _, h := range handles {
		schema, ok := schemaFor[h.Capability]
		if !ok {
			continue // unknown capability; skip rather than fail the whole turn
		}
		adapter, err := opener.Open(ctx, workspace, h)
		if err != nil {
			return nil, fmt.Errorf("open adapter for %s: %w", h.ToolName(), err)
		}
		name := tools.Ident(h.ToolName())
		validator, err := tools.NewValidator(name, schema)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", name, err)
		}
		set.tools[name] = &adapterTool{
			spec: tools.Spec{
				Name:        name,
				Description: descriptionFor[h.Capability],
				InputSchema: schema,
				Timeout:     tools.DefaultTimeout,
			},
			validator: validator,
			adapter:   adapter,
		}
	}
	return set, nil
}

// ToolSet implements react.ToolSet over a fixed map built once per Turn.
type ToolSet struct {
	tools map[tools.Ident]tools.Tool
}

// Lookup implements react.ToolSet.Lookup.
func (s *ToolSet) Lookup(name tools.Ident) (tools.Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Definitions implements react.ToolSet.Definitions.
func (s *ToolSet) Definitions() []*model.ToolDefinition {
	defs := make([]*model.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		spec := t.Spec()
		defs = append(defs, &model.ToolDefinition{
			Name: spec.Name, Description: spec.Description, InputSchema: spec.InputSchema,
		})
	}
	return defs
}

// adapterTool wraps one provider.Adapter as a tools.Tool, validating input
// and translating adapter failures into error Observations (spec.md §4.3:
// "A non-nil error here always means an adapter-level failure... the Tool
// wrapper, not the adapter, turns it into an ERROR: Observation").
type adapterTool struct {
	spec      tools.Spec
	validator *tools.Validator
	adapter   provider.Adapter
}

func (t *adapterTool) Spec() tools.Spec { return t.spec }

func (t *adapterTool) Invoke(ctx context.Context, input []byte) (tools.Observation, error) {
	if err := t.validator.Validate(input); err != nil {
		return tools.Errorf(err.Error()), nil
	}
	result, err := t.adapter.Call(ctx, input)
	if err != nil {
		return tools.Errorf(err.Error()), nil
	}
	return tools.Observation{Text: tools.Truncate(string(result))}, nil
}
