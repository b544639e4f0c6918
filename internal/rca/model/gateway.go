package model

import (
	"context"
	"errors"
)

// ErrProviderRequired is returned by NewGateway when no Client was configured
// via WithProvider.
var ErrProviderRequired = errors.New("model: provider client required")

// UnaryHandler processes one non-streaming completion request.
type UnaryHandler func(ctx context.Context, req *Request) (*Response, error)

// StreamHandler processes a streaming completion request, invoking send for
// each chunk. send must be called sequentially; an error from send aborts
// the stream.
type StreamHandler func(ctx context.Context, req *Request, send func(Chunk) error) error

// UnaryMiddleware wraps a UnaryHandler with cross-cutting behavior (retry
// pacing, rate limiting, telemetry).
type UnaryMiddleware func(next UnaryHandler) UnaryHandler

// StreamMiddleware wraps a StreamHandler with cross-cutting behavior.
type StreamMiddleware func(next StreamHandler) StreamHandler

// GatewayOption configures a Gateway during construction.
type GatewayOption func(*gatewayConfig)

type gatewayConfig struct {
	provider Client
	unaryMW  []UnaryMiddleware
	streamMW []StreamMiddleware
}

// WithProvider sets the underlying model Client. Required.
func WithProvider(c Client) GatewayOption {
	return func(cfg *gatewayConfig) { cfg.provider = c }
}

// WithUnary appends unary middleware, applied in registration order (the
// first registered becomes the outermost layer).
func WithUnary(mw ...UnaryMiddleware) GatewayOption {
	return func(cfg *gatewayConfig) { cfg.unaryMW = append(cfg.unaryMW, mw...) }
}

// WithStream appends streaming middleware, applied in registration order.
func WithStream(mw ...StreamMiddleware) GatewayOption {
	return func(cfg *gatewayConfig) { cfg.streamMW = append(cfg.streamMW, mw...) }
}

// Gateway is the LLM Gateway capability: one Client plus a middleware chain
// for retry/backoff pacing, rate limiting, and telemetry (spec.md §4.5).
type Gateway struct {
	provider Client
	unary    UnaryHandler
	stream   StreamHandler
}

// NewGateway builds a Gateway from options. A provider Client is required.
func NewGateway(opts ...GatewayOption) (*Gateway, error) {
	var cfg gatewayConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.provider == nil {
		return nil, ErrProviderRequired
	}
	baseUnary := func(ctx context.Context, req *Request) (*Response, error) {
		return cfg.provider.Complete(ctx, req)
	}
	baseStream := func(ctx context.Context, req *Request, send func(Chunk) error) error {
		st, err := cfg.provider.Stream(ctx, req)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		for {
			ch, err := st.Recv()
			if err != nil {
				return err
			}
			if err := send(ch); err != nil {
				return err
			}
			if ch.Type == ChunkTypeStop {
				return nil
			}
		}
	}
	unary := baseUnary
	for i := len(cfg.unaryMW) - 1; i >= 0; i-- {
		unary = cfg.unaryMW[i](unary)
	}
	stream := baseStream
	for i := len(cfg.streamMW) - 1; i >= 0; i-- {
		stream = cfg.streamMW[i](stream)
	}
	return &Gateway{provider: cfg.provider, unary: unary, stream: stream}, nil
}

// Complete runs req through the middleware chain to the provider.
func (g *Gateway) Complete(ctx context.Context, req *Request) (*Response, error) {
	return g.unary(ctx, req)
}

// Stream runs req through the middleware chain to the provider, invoking
// send for each chunk.
func (g *Gateway) Stream(ctx context.Context, req *Request, send func(Chunk) error) error {
	return g.stream(ctx, req, send)
}
