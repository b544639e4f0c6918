package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvents_ExposeTypeTurnSequenceAndPayload(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		want  EventType
	}{
		{"status", StatusEvent{Base: Base{EvtType: EventStatus, Turn: "t-1", Seq: 1}, Data: StatusPayload{Message: "Starting analysis"}}, EventStatus},
		{"tool_start", ToolStartEvent{Base: Base{EvtType: EventToolStart, Turn: "t-1", Seq: 2}, Data: ToolStartPayload{ToolName: "logs.search.cloudwatch"}}, EventToolStart},
		{"tool_end", ToolEndEvent{Base: Base{EvtType: EventToolEnd, Turn: "t-1", Seq: 3}, Data: ToolEndPayload{ToolName: "logs.search.cloudwatch", IsError: true}}, EventToolEnd},
		{"thinking", ThinkingEvent{Base: Base{EvtType: EventThinking, Turn: "t-1", Seq: 4}, Data: ThinkingPayload{Text: "checking recent deploys"}}, EventThinking},
		{"complete", CompleteEvent{Base: Base{EvtType: EventComplete, Turn: "t-1", Seq: 5}, Data: CompletePayload{FinalResponse: "root cause: bad config"}}, EventComplete},
		{"error", ErrorEvent{Base: Base{EvtType: EventError, Turn: "t-1", Seq: 6}, Data: ErrorPayload{Message: "llm unavailable"}}, EventError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.event.Type())
			require.Equal(t, "t-1", c.event.TurnID())
			require.NotZero(t, c.event.Sequence())
			require.NotNil(t, c.event.Payload())
		})
	}
}

func TestToolEndPayload_CarriesErrorFlag(t *testing.T) {
	e := ToolEndEvent{Base: Base{EvtType: EventToolEnd, Turn: "t-2", Seq: 1}, Data: ToolEndPayload{ToolName: "metrics.query.prometheus", Result: "ERROR: timeout", IsError: true}}
	payload, ok := e.Payload().(ToolEndPayload)
	require.True(t, ok)
	require.True(t, payload.IsError)
	require.Equal(t, "ERROR: timeout", payload.Result)
}
