package pulse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	pulseclient "github.com/akshatgg/vibe-monitor-back/features/pulse"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/stream"
)

type fakeSink struct {
	events chan *streaming.Event
	acked  []*streaming.Event
}

func (s *fakeSink) Subscribe() <-chan *streaming.Event { return s.events }
func (s *fakeSink) Ack(ctx context.Context, e *streaming.Event) error {
	s.acked = append(s.acked, e)
	return nil
}
func (s *fakeSink) Close(ctx context.Context) {}

type fakeStream struct {
	added []struct {
		event   string
		payload []byte
	}
	sink *fakeSink
}

func (s *fakeStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	s.added = append(s.added, struct {
		event   string
		payload []byte
	}{event, payload})
	return "evt-id", nil
}
func (s *fakeStream) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (pulseclient.Sink, error) {
	return s.sink, nil
}

type fakeClient struct {
	stream *fakeStream
	err    error
}

func (c *fakeClient) Stream(name string, opts ...streamopts.Stream) (pulseclient.Stream, error) {
	return c.stream, c.err
}
func (c *fakeClient) Close(ctx context.Context) error { return nil }

func TestBusSink_SendPublishesEnvelope(t *testing.T) {
	str := &fakeStream{}
	client := &fakeClient{stream: str}
	bus := New(client)

	sink, err := bus.Sink(context.Background(), "turn-1")
	require.NoError(t, err)

	evt := stream.CompleteEvent{
		Base: stream.Base{EvtType: stream.EventComplete, Turn: "turn-1", Seq: 3},
		Data: stream.CompletePayload{FinalResponse: "root cause: bad deploy"},
	}
	require.NoError(t, sink.Send(context.Background(), evt))
	require.Len(t, str.added, 1)

	var env envelope
	require.NoError(t, json.Unmarshal(str.added[0].payload, &env))
	require.Equal(t, "complete", env.Type)
	require.Equal(t, "turn-1", env.TurnID)
	require.EqualValues(t, 3, env.Sequence)
}

func TestDecode_RoundTripsEveryEventType(t *testing.T) {
	cases := []stream.Event{
		stream.StatusEvent{Base: stream.Base{EvtType: stream.EventStatus, Turn: "t1", Seq: 1}, Data: stream.StatusPayload{Message: "starting"}},
		stream.ToolStartEvent{Base: stream.Base{EvtType: stream.EventToolStart, Turn: "t1", Seq: 2}, Data: stream.ToolStartPayload{ToolName: "logs.search"}},
		stream.ToolEndEvent{Base: stream.Base{EvtType: stream.EventToolEnd, Turn: "t1", Seq: 3}, Data: stream.ToolEndPayload{ToolName: "logs.search", IsError: true}},
		stream.ThinkingEvent{Base: stream.Base{EvtType: stream.EventThinking, Turn: "t1", Seq: 4}, Data: stream.ThinkingPayload{Text: "considering logs"}},
		stream.CompleteEvent{Base: stream.Base{EvtType: stream.EventComplete, Turn: "t1", Seq: 5}, Data: stream.CompletePayload{FinalResponse: "done"}},
		stream.ErrorEvent{Base: stream.Base{EvtType: stream.EventError, Turn: "t1", Seq: 6}, Data: stream.ErrorPayload{Message: "boom"}},
	}

	for _, evt := range cases {
		payload, err := json.Marshal(evt.Payload())
		require.NoError(t, err)
		env := envelope{Type: string(evt.Type()), TurnID: evt.TurnID(), Sequence: evt.Sequence(), Payload: payload}
		raw, err := json.Marshal(env)
		require.NoError(t, err)

		decoded, err := decode(raw)
		require.NoError(t, err)
		require.Equal(t, evt.Type(), decoded.Type())
		require.Equal(t, evt.Sequence(), decoded.Sequence())
		require.Equal(t, evt.Payload(), decoded.Payload())
	}
}

func TestDecode_UnknownEventTypeErrors(t *testing.T) {
	env := envelope{Type: "bogus", TurnID: "t1", Sequence: 1}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = decode(raw)
	require.Error(t, err)
}

func TestDecode_InvalidJSONErrors(t *testing.T) {
	_, err := decode([]byte("not json"))
	require.Error(t, err)
}

func TestSubscribe_FiltersBelowFromSequence(t *testing.T) {
	sink := &fakeSink{events: make(chan *streaming.Event, 4)}
	str := &fakeStream{sink: sink}
	client := &fakeClient{stream: str}
	bus := New(client)

	low := stream.StatusEvent{Base: stream.Base{EvtType: stream.EventStatus, Turn: "t1", Seq: 1}, Data: stream.StatusPayload{Message: "old"}}
	high := stream.CompleteEvent{Base: stream.Base{EvtType: stream.EventComplete, Turn: "t1", Seq: 5}, Data: stream.CompletePayload{FinalResponse: "done"}}

	for _, evt := range []stream.Event{low, high} {
		payload, _ := json.Marshal(evt.Payload())
		env := envelope{Type: string(evt.Type()), TurnID: evt.TurnID(), Sequence: evt.Sequence(), Payload: payload}
		raw, _ := json.Marshal(env)
		sink.events <- &streaming.Event{ID: "evt", Payload: raw}
	}

	sub, err := bus.Subscribe(context.Background(), "t1", 5)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case evt := <-sub.Events():
		require.Equal(t, stream.EventComplete, evt.Type())
		require.EqualValues(t, 5, evt.Sequence())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
}
