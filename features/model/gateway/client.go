// Package gateway adapts internal/rca/model.Gateway's callback-style Stream
// into the channel-style model.Streamer the rest of model.Client's
// implementations expose, so a Gateway-wrapped provider client can be
// handed anywhere a plain model.Client is expected (notably
// worker.ModelResolver.Resolve's return type). Grounded on the same
// Recv/Close draining shape features/model/gemini/stream.go already uses to
// bridge an iterator-style SDK stream to model.Streamer.
package gateway

import (
	"context"
	"io"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
)

// Client wraps a *model.Gateway so it satisfies model.Client.
type Client struct {
	gw *model.Gateway
}

// New wraps gw as a model.Client.
func New(gw *model.Gateway) *Client { return &Client{gw: gw} }

// Complete implements model.Client.Complete.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return c.gw.Complete(ctx, req)
}

// Stream implements model.Client.Stream by running the Gateway's
// callback-style Stream in a goroutine and relaying chunks over a channel.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &streamer{cancel: cancel, chunks: make(chan model.Chunk, 16), done: make(chan struct{})}
	go s.run(ctx, c.gw, req)
	return s, nil
}

type streamer struct {
	cancel context.CancelFunc
	chunks chan model.Chunk
	done   chan struct{}
	err    error
}

func (s *streamer) run(ctx context.Context, gw *model.Gateway, req *model.Request) {
	defer close(s.done)
	s.err = gw.Stream(ctx, req, func(ch model.Chunk) error {
		select {
		case s.chunks <- ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(s.chunks)
}

func (s *streamer) Recv() (model.Chunk, error) {
	ch, ok := <-s.chunks
	if !ok {
		<-s.done
		if s.err != nil {
			return model.Chunk{}, s.err
		}
		return model.Chunk{}, io.EOF
	}
	return ch, nil
}

func (s *streamer) Close() error {
	s.cancel()
	return nil
}
