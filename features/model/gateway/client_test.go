package gateway

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
)

type fakeProvider struct {
	resp         *model.Response
	streamChunks []model.Chunk
}

func (p *fakeProvider) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return p.resp, nil
}

func (p *fakeProvider) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return &fakeStreamer{chunks: p.streamChunks}, nil
}

type fakeStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (s *fakeStreamer) Recv() (model.Chunk, error) {
	if s.idx >= len(s.chunks) {
		return model.Chunk{}, io.EOF
	}
	ch := s.chunks[s.idx]
	s.idx++
	return ch, nil
}

func (s *fakeStreamer) Close() error { return nil }

func TestClient_Complete_DelegatesToGateway(t *testing.T) {
	gw, err := model.NewGateway(model.WithProvider(&fakeProvider{resp: &model.Response{StopReason: "end_turn"}}))
	require.NoError(t, err)

	c := New(gw)
	resp, err := c.Complete(context.Background(), &model.Request{})
	require.NoError(t, err)
	require.Equal(t, "end_turn", resp.StopReason)
}

func TestClient_Stream_RelaysChunksOverChannel(t *testing.T) {
	gw, err := model.NewGateway(model.WithProvider(&fakeProvider{streamChunks: []model.Chunk{
		{Type: model.ChunkTypeText, Text: "hello"},
		{Type: model.ChunkTypeStop},
	}}))
	require.NoError(t, err)

	c := New(gw)
	streamer, err := c.Stream(context.Background(), &model.Request{})
	require.NoError(t, err)

	first, err := streamer.Recv()
	require.NoError(t, err)
	require.Equal(t, "hello", first.Text)

	second, err := streamer.Recv()
	require.NoError(t, err)
	require.Equal(t, model.ChunkTypeStop, second.Type)

	_, err = streamer.Recv()
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, streamer.Close())
}

func TestClient_Stream_PropagatesGatewayError(t *testing.T) {
	providerErr := errors.New("upstream reset")
	gw, err := model.NewGateway(model.WithProvider(&erroringProvider{err: providerErr}))
	require.NoError(t, err)

	c := New(gw)
	streamer, err := c.Stream(context.Background(), &model.Request{})
	require.NoError(t, err)

	_, err = streamer.Recv()
	require.ErrorIs(t, err, providerErr)
}

type erroringProvider struct{ err error }

func (p *erroringProvider) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, p.err
}

func (p *erroringProvider) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, p.err
}
