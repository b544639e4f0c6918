// Package pulse implements internal/rca/queue.Transport on top of a single
// Pulse stream ("jobs:queue" by default) shared by every worker as one
// consumer group, adapted from the teacher's
// features/stream/pulse/subscriber.go consume loop. Pulse's consumer-group
// model gives at-least-once delivery and a pending-entries list, but it has
// no native per-message visibility-timeout extension; ChangeVisibility is
// therefore implemented as ack-and-redeliver-after-delay, which is safe here
// because job claiming is keyed by job_id (domain.JobStore.ClaimQueued),
// not by Pulse message identity — a duplicate or out-of-order redelivery of
// the same job_id is a no-op for any worker that doesn't win the claim race.
package pulse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"goa.design/pulse/streaming"

	pulseclient "github.com/akshatgg/vibe-monitor-back/features/pulse"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/queue"
)

const (
	defaultStreamName = "jobs:queue"
	defaultSinkName   = "rca_worker"
)

// Options configures a Transport.
type Options struct {
	Client     pulseclient.Client
	StreamName string // defaults to "jobs:queue"
	SinkName   string // defaults to "rca_worker"
}

type jobEnvelope struct {
	JobID string `json:"job_id"`
}

// Transport implements queue.Transport.
type Transport struct {
	client pulseclient.Client
	stream pulseclient.Stream

	sinkName string

	mu      sync.Mutex
	sink    pulseclient.Sink
	pending map[string]*streaming.Event // receipt handle -> raw event, for Ack
}

// New constructs a Transport against opts.StreamName, opening its consumer
// group sink lazily on the first Receive call.
func New(ctx context.Context, opts Options) (*Transport, error) {
	name := opts.StreamName
	if name == "" {
		name = defaultStreamName
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		sinkName = defaultSinkName
	}
	str, err := opts.Client.Stream(name)
	if err != nil {
		return nil, err
	}
	return &Transport{
		client:   opts.Client,
		stream:   str,
		sinkName: sinkName,
		pending:  make(map[string]*streaming.Event),
	}, nil
}

func (t *Transport) ensureSink(ctx context.Context) (pulseclient.Sink, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink != nil {
		return t.sink, nil
	}
	sink, err := t.stream.NewSink(ctx, t.sinkName)
	if err != nil {
		return nil, err
	}
	t.sink = sink
	return sink, nil
}

// Send publishes jobID, delivering immediately when delay<=0 or after delay
// elapses otherwise (Pulse streams have no native scheduled delivery).
func (t *Transport) Send(ctx context.Context, jobID string, delay time.Duration) error {
	payload, err := json.Marshal(jobEnvelope{JobID: jobID})
	if err != nil {
		return err
	}
	if delay <= 0 {
		_, err := t.stream.Add(ctx, "job", payload)
		return err
	}
	go func() {
		time.Sleep(delay)
		_, _ = t.stream.Add(context.Background(), "job", payload)
	}()
	return nil
}

// Receive reads up to max pending jobs, blocking briefly for at least one.
// visibilityTimeout has no direct Pulse equivalent; it is honored only
// indirectly, through ChangeVisibility's ack-and-redeliver behavior below.
func (t *Transport) Receive(ctx context.Context, max int, visibilityTimeout time.Duration) ([]queue.Message, error) {
	sink, err := t.ensureSink(ctx)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	var out []queue.Message
	timeout := time.NewTimer(2 * time.Second)
	defer timeout.Stop()
	for len(out) < max {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case evt, ok := <-sink.Subscribe():
			if !ok {
				return out, nil
			}
			var env jobEnvelope
			if err := json.Unmarshal(evt.Payload, &env); err != nil {
				_ = sink.Ack(ctx, evt) // malformed message, drop it
				continue
			}
			t.mu.Lock()
			t.pending[evt.ID] = evt
			t.mu.Unlock()
			out = append(out, queue.Message{JobID: env.JobID, ReceiptHandle: evt.ID})
		case <-timeout.C:
			return out, nil
		}
	}
	return out, nil
}

// Delete acks the message, removing it from the consumer group's pending
// entries list.
func (t *Transport) Delete(ctx context.Context, msg queue.Message) error {
	t.mu.Lock()
	evt, ok := t.pending[msg.ReceiptHandle]
	if ok {
		delete(t.pending, msg.ReceiptHandle)
	}
	t.mu.Unlock()
	if !ok {
		return nil // already acked/expired from our local cache
	}
	sink, err := t.ensureSink(ctx)
	if err != nil {
		return err
	}
	return sink.Ack(ctx, evt)
}

// ChangeVisibility acks the current delivery and re-enqueues the job after
// delay, since Pulse has no XCLAIM-style visibility extension.
func (t *Transport) ChangeVisibility(ctx context.Context, msg queue.Message, delay time.Duration) error {
	t.mu.Lock()
	evt, ok := t.pending[msg.ReceiptHandle]
	if ok {
		delete(t.pending, msg.ReceiptHandle)
	}
	t.mu.Unlock()
	if ok {
		sink, err := t.ensureSink(ctx)
		if err != nil {
			return err
		}
		if err := sink.Ack(ctx, evt); err != nil {
			return err
		}
		var env jobEnvelope
		if err := json.Unmarshal(evt.Payload, &env); err == nil {
			return t.Send(ctx, env.JobID, delay)
		}
	}
	return nil
}

var _ queue.Transport = (*Transport)(nil)
