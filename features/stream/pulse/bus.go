// Package pulse implements internal/rca/stream.Bus on Pulse streams, keyed
// "turn:{turn_id}" per spec.md §4.6. Adapted from the teacher's
// features/stream/pulse/sink.go (envelope shape, publish-by-stream-name) and
// subscriber.go (consumer-group decode loop), generalized from the
// teacher's session-keyed stream naming to the spec's turn-keyed naming and
// from the teacher's generic runtime.Event envelope to the six concrete
// stream.Event payload types.
package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pulseclient "github.com/akshatgg/vibe-monitor-back/features/pulse"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/stream"
)

const defaultSinkName = "rca_stream_reader"

// envelope is the wire format published to a turn's Pulse stream.
type envelope struct {
	Type      string          `json:"type"`
	TurnID    string          `json:"turn_id"`
	Sequence  uint32          `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Bus implements stream.Bus.
type Bus struct {
	client pulseclient.Client
}

// New constructs a Bus over client.
func New(client pulseclient.Client) *Bus {
	return &Bus{client: client}
}

func streamName(turnID string) string { return fmt.Sprintf("turn:%s", turnID) }

// Sink implements stream.Bus.Sink.
func (b *Bus) Sink(ctx context.Context, turnID string) (stream.Sink, error) {
	str, err := b.client.Stream(streamName(turnID))
	if err != nil {
		return nil, err
	}
	return &busSink{stream: str}, nil
}

type busSink struct{ stream pulseclient.Stream }

func (s *busSink) Send(ctx context.Context, evt stream.Event) error {
	payload, err := json.Marshal(evt.Payload())
	if err != nil {
		return err
	}
	env := envelope{
		Type: string(evt.Type()), TurnID: evt.TurnID(), Sequence: evt.Sequence(),
		Timestamp: time.Now().UTC(), Payload: payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.stream.Add(ctx, string(evt.Type()), raw)
	return err
}

func (s *busSink) Close(ctx context.Context) error { return nil }

// Subscribe implements stream.Bus.Subscribe: it opens a dedicated,
// time-stamped consumer group so every subscriber reads the full live tail
// independently (one Subscribe call per active stream request), then
// filters out anything below fromSequence before it ever reaches the
// caller — deduplication against replayed steps is additionally enforced by
// chatapi.Service.StreamTurn itself.
func (b *Bus) Subscribe(ctx context.Context, turnID string, fromSequence uint32) (stream.Subscription, error) {
	str, err := b.client.Stream(streamName(turnID))
	if err != nil {
		return nil, err
	}
	sinkName := fmt.Sprintf("%s-%d", defaultSinkName, time.Now().UnixNano())
	sink, err := str.NewSink(ctx, sinkName)
	if err != nil {
		return nil, err
	}
	out := make(chan stream.Event, 64)
	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		for {
			select {
			case <-subCtx.Done():
				return
			case raw, ok := <-sink.Subscribe():
				if !ok {
					return
				}
				evt, err := decode(raw.Payload)
				if err != nil {
					_ = sink.Ack(subCtx, raw)
					continue
				}
				if evt.Sequence() >= fromSequence {
					select {
					case out <- evt:
					case <-subCtx.Done():
						_ = sink.Ack(subCtx, raw)
						return
					}
				}
				_ = sink.Ack(subCtx, raw)
			}
		}
	}()
	return &subscription{events: out, cancel: cancel, sink: sink}, nil
}

type subscription struct {
	events chan stream.Event
	cancel context.CancelFunc
	sink   pulseclient.Sink
}

func (s *subscription) Events() <-chan stream.Event { return s.events }

func (s *subscription) Close() error {
	s.cancel()
	s.sink.Close(context.Background())
	return nil
}

func decode(payload []byte) (stream.Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	base := stream.Base{EvtType: stream.EventType(env.Type), Turn: env.TurnID, Seq: env.Sequence}
	switch base.EvtType {
	case stream.EventStatus:
		var p stream.StatusPayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.StatusEvent{Base: base, Data: p}, nil
	case stream.EventToolStart:
		var p stream.ToolStartPayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.ToolStartEvent{Base: base, Data: p}, nil
	case stream.EventToolEnd:
		var p stream.ToolEndPayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.ToolEndEvent{Base: base, Data: p}, nil
	case stream.EventThinking:
		var p stream.ThinkingPayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.ThinkingEvent{Base: base, Data: p}, nil
	case stream.EventComplete:
		var p stream.CompletePayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.CompleteEvent{Base: base, Data: p}, nil
	case stream.EventError:
		var p stream.ErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		return stream.ErrorEvent{Base: base, Data: p}, nil
	default:
		return nil, fmt.Errorf("unknown stream event type %q", env.Type)
	}
}

var _ stream.Bus = (*Bus)(nil)
