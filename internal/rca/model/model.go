// Package model defines the provider-agnostic chat-completion types used by
// the ReAct engine and the concrete LLM Gateway clients (spec.md §4.5, §9.1
// "pluggable LLM" redesign flag). Messages are modeled as typed parts (text,
// thinking, tool use/result) instead of flattened strings so tool-call
// correlation survives the round trip to any provider.
package model

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// ConversationRole identifies the speaker for a Message.
type ConversationRole string

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// Part is implemented by every message content block.
type Part interface{ isPart() }

// TextPart is plain assistant- or user-visible text.
type TextPart struct{ Text string }

// ThinkingPart carries provider-issued reasoning content, surfaced to the
// caller as a `thinking` TurnStep (spec.md §3 StepType).
type ThinkingPart struct {
	Text      string
	Signature string
	Final     bool
}

// ToolUsePart declares a tool invocation requested by the assistant.
type ToolUsePart struct {
	ID    string
	Name  tools.Ident
	Input json.RawMessage
}

// ToolResultPart carries a tool result attached to a user-role message so
// the model can read it on the next turn of the ReAct loop.
type ToolResultPart struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextPart) isPart()       {}
func (ThinkingPart) isPart()   {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Message is one entry in the transcript passed to a Client.
type Message struct {
	Role  ConversationRole
	Parts []Part
}

// ToolDefinition describes one tool exposed to the model for this request.
type ToolDefinition struct {
	Name        tools.Ident
	Description string
	InputSchema json.RawMessage
}

// TokenUsage tracks token counts for one model call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request captures the inputs to one model invocation.
type Request struct {
	Model       string
	Messages    []*Message
	Tools       []*ToolDefinition
	Temperature float32
	MaxTokens   int
	Stream      bool
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Content    []Message
	ToolCalls  []ToolUsePart
	Usage      TokenUsage
	StopReason string
}

// Chunk is one streaming event from the model.
type Chunk struct {
	Type          string
	Text          string
	ThinkingDelta string
	ToolCall      *ToolUsePart
	UsageDelta    *TokenUsage
	StopReason    string
}

const (
	ChunkTypeText     = "text"
	ChunkTypeThinking = "thinking"
	ChunkTypeToolCall = "tool_call"
	ChunkTypeUsage    = "usage"
	ChunkTypeStop     = "stop"
)

// Streamer delivers incremental model output. Callers drain Recv until it
// returns io.EOF, then Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is the provider-agnostic chat-completion capability. Concrete
// variants live under features/model/{anthropic,openai,gemini} — Platform
// and BYO-OpenAI/Azure-OpenAI/Gemini per spec.md's pluggable-LLM redesign.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (Streamer, error)
}

// ErrStreamingUnsupported indicates the provider variant does not implement Stream.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

// ErrRateLimited indicates the provider rejected the request after the
// LLM Gateway's retry/backoff budget was exhausted (spec.md §7 "llm_unavailable").
var ErrRateLimited = errors.New("model: rate limited")
