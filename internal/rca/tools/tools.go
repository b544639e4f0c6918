// Package tools defines the uniform Tool capability the ReAct engine invokes,
// independent of which provider adapter backs it (spec.md §4.3).
package tools

import (
	"context"
	"time"
)

// Ident is the strong type for a tool's LLM-visible name, e.g.
// "logs.search.cloudwatch". Kept distinct from free-form strings so callers
// can't accidentally pass a capability or provider name where a tool name is
// expected.
type Ident string

// DefaultTimeout is the default per-call deadline (spec.md §4.3).
const DefaultTimeout = 20 * time.Second

// MaxObservationBytes bounds the size of a tool's returned Observation.Text
// before the ReAct engine truncates it (spec.md §4.4 edge cases).
const MaxObservationBytes = 8 * 1024

// Observation is the bounded, human-readable result of one tool invocation,
// plus structured metadata the ReAct engine may log or surface but never
// sends verbatim to the model.
type Observation struct {
	Text     string
	Meta     map[string]any
	IsError  bool
	ErrorMsg string // one-line reason, present iff IsError
}

// Errorf builds an error Observation with the ERROR: prefix spec.md §4.3
// requires: adapter failures become a string the agent can read and route
// around, never an aborting exception.
func Errorf(reason string) Observation {
	return Observation{Text: "ERROR: " + reason, IsError: true, ErrorMsg: reason}
}

// Spec describes a tool's identity and input schema, the metadata the ReAct
// engine exposes to the model's function-calling surface.
type Spec struct {
	Name        Ident
	Description string
	InputSchema []byte // JSON Schema, compiled by NewValidator before dispatch
	Timeout     time.Duration
}

// Tool is a named, schema-typed callable the ReAct engine may invoke. A Tool
// wraps exactly one provider adapter capability; workspace isolation is
// enforced by whoever constructs the tool set (the worker, at dispatch time)
// — tools never accept a workspace argument from the model.
type Tool interface {
	Spec() Spec
	// Invoke runs the tool against input (already schema-validated). It never
	// returns a Go error for an adapter failure — that becomes an error
	// Observation instead, per spec.md §4.3. A non-nil error return is
	// reserved for invocation-harness failures (e.g. ctx canceled).
	Invoke(ctx context.Context, input []byte) (Observation, error)
}

// Truncate clamps text to MaxObservationBytes, appending the marker spec.md
// §8 names for the truncation edge case.
func Truncate(text string) string {
	if len(text) <= MaxObservationBytes {
		return text
	}
	return text[:MaxObservationBytes] + "…<truncated>"
}
