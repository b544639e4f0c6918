package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// streamer adapts a genai GenerateContentStream iterator to model.Streamer,
// grounded on haasonsaas-nexus's processStreamResponse (text/function-call
// part handling) but pushed through a channel instead of its own
// provider-specific CompletionChunk type so it satisfies model.Streamer.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks chan model.Chunk

	errMu    sync.Mutex
	finalErr error
	errSet   bool
}

func newStreamer(parent context.Context, it iter.Seq2[*genai.GenerateContentResponse, error]) model.Streamer {
	ctx, cancel := context.WithCancel(parent)
	s := &streamer{ctx: ctx, cancel: cancel, chunks: make(chan model.Chunk, 32)}
	go s.run(it)
	return s
}

func (s *streamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		s.setErr(err)
		return model.Chunk{}, err
	}
}

func (s *streamer) Close() error {
	s.cancel()
	return nil
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet, s.finalErr = true, err
}

func (s *streamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

func (s *streamer) emit(c model.Chunk) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.chunks <- c:
		return nil
	}
}

func (s *streamer) run(it iter.Seq2[*genai.GenerateContentResponse, error]) {
	defer close(s.chunks)

	usage := model.TokenUsage{}
	var lastErr error

	for resp, err := range it {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if err != nil {
			if isRateLimited(err) {
				lastErr = fmt.Errorf("%w: %w", model.ErrRateLimited, err)
			} else {
				lastErr = fmt.Errorf("gemini stream: %w", err)
			}
			break
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			usage = model.TokenUsage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					if err := s.emit(model.Chunk{Type: model.ChunkTypeText, Text: part.Text}); err != nil {
						s.setErr(err)
						return
					}
				}
				if part.FunctionCall != nil {
					input, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						input = []byte("{}")
					}
					toolCall := &model.ToolUsePart{
						ID:    fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, time.Now().UnixNano()),
						Name:  tools.Ident(part.FunctionCall.Name),
						Input: input,
					}
					if err := s.emit(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: toolCall}); err != nil {
						s.setErr(err)
						return
					}
				}
			}
		}
	}

	if lastErr != nil {
		s.setErr(lastErr)
		return
	}
	if usage.TotalTokens > 0 {
		if err := s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}); err != nil {
			s.setErr(err)
			return
		}
	}
	_ = s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: "stop"})
}
