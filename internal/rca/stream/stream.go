// Package stream defines the live event fabric of spec.md §4.6: the six
// frame kinds a Turn emits while it runs, and the Sink/Bus capabilities that
// deliver them to clients. Bus content is never the source of truth — every
// frame is persisted as a TurnStep first; the bus only carries it onward.
package stream

import "context"

// EventType classifies one streamed frame.
type EventType string

const (
	EventStatus   EventType = "status"
	EventToolStart EventType = "tool_start"
	EventToolEnd  EventType = "tool_end"
	EventThinking EventType = "thinking"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one frame published to a Turn's stream. All concrete payload
// types embed Base.
type Event interface {
	Type() EventType
	TurnID() string
	Sequence() uint32
	Payload() any
}

// Base carries the metadata common to every frame.
type Base struct {
	EvtType EventType
	Turn    string
	Seq     uint32
}

func (b Base) Type() EventType   { return b.EvtType }
func (b Base) TurnID() string    { return b.Turn }
func (b Base) Sequence() uint32  { return b.Seq }

// StatusPayload narrates a coarse-grained phase change ("Starting analysis").
type StatusPayload struct{ Message string }

// StatusEvent is emitted when the worker enters a new coarse phase.
type StatusEvent struct {
	Base
	Data StatusPayload
}

func (e StatusEvent) Payload() any { return e.Data }

// ToolStartPayload names the tool and carries its (already-validated) input.
type ToolStartPayload struct {
	ToolName string
	Input    string // canonical JSON, for display only
}

// ToolStartEvent is emitted when the ReAct loop dispatches a tool call.
type ToolStartEvent struct {
	Base
	Data ToolStartPayload
}

func (e ToolStartEvent) Payload() any { return e.Data }

// ToolEndPayload carries the bounded Observation text and whether the tool
// call failed.
type ToolEndPayload struct {
	ToolName string
	Result   string
	IsError  bool
}

// ToolEndEvent is emitted when a dispatched tool call returns.
type ToolEndEvent struct {
	Base
	Data ToolEndPayload
}

func (e ToolEndEvent) Payload() any { return e.Data }

// ThinkingPayload carries a chunk of the model's reasoning text.
type ThinkingPayload struct{ Text string }

// ThinkingEvent is emitted as the model produces intermediate reasoning.
type ThinkingEvent struct {
	Base
	Data ThinkingPayload
}

func (e ThinkingEvent) Payload() any { return e.Data }

// CompletePayload carries the Turn's final answer.
type CompletePayload struct{ FinalResponse string }

// CompleteEvent is the terminal success frame for a Turn.
type CompleteEvent struct {
	Base
	Data CompletePayload
}

func (e CompleteEvent) Payload() any { return e.Data }

// ErrorPayload carries the Turn's terminal failure message.
type ErrorPayload struct{ Message string }

// ErrorEvent is the terminal failure frame for a Turn.
type ErrorEvent struct {
	Base
	Data ErrorPayload
}

func (e ErrorEvent) Payload() any { return e.Data }

// Sink publishes events to a Turn's stream. Implementations must be
// thread-safe: the worker may call Send concurrently while also persisting
// TurnSteps.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}

// Bus opens a Sink for publishing and a Subscription for reading back a
// Turn's stream, supporting the "replay missed events on reconnect"
// requirement of spec.md §4.6 via Subscription's fromSequence parameter.
type Bus interface {
	Sink(ctx context.Context, turnID string) (Sink, error)
	Subscribe(ctx context.Context, turnID string, fromSequence uint32) (Subscription, error)
}

// Subscription delivers events for one Turn, starting at the requested
// sequence number (0 meaning "from the beginning of what's retained").
type Subscription interface {
	Events() <-chan Event
	Close() error
}
