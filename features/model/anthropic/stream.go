package anthropic

import (
	"context"
	"io"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// streamer adapts an Anthropic Messages SSE stream to model.Streamer,
// trimmed from the teacher's anthropicStreamer to the five Chunk kinds
// internal/rca/model defines (no cache/redacted-thinking metadata).
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	chunks chan model.Chunk

	errMu    sync.Mutex
	finalErr error
	errSet   bool

	nameMap map[string]string
}

func newStreamer(s *ssestream.Stream[sdk.MessageStreamEventUnion], nameMap map[string]string) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	st := &streamer{ctx: ctx, cancel: cancel, stream: s, chunks: make(chan model.Chunk, 32), nameMap: nameMap}
	go st.run()
	return st
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
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
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

func (s *streamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	toolBlocks := make(map[int]*toolBuffer)
	var stopReason string

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.stream.Next() {
			s.setErr(s.stream.Err())
			return
		}
		event := s.stream.Current()
		if err := s.handle(event, toolBlocks, &stopReason); err != nil {
			s.setErr(err)
			return
		}
	}
}

func (s *streamer) emit(c model.Chunk) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.chunks <- c:
		return nil
	}
}

func (s *streamer) handle(event sdk.MessageStreamEventUnion, toolBlocks map[int]*toolBuffer, stopReason *string) error {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		for k := range toolBlocks {
			delete(toolBlocks, k)
		}
		*stopReason = ""
		return nil
	case sdk.ContentBlockStartEvent:
		if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			name := toolUse.Name
			if canonical, ok := s.nameMap[name]; ok {
				name = canonical
			}
			toolBlocks[int(ev.Index)] = &toolBuffer{id: toolUse.ID, name: name}
		}
		return nil
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil
			}
			return s.emit(model.Chunk{Type: model.ChunkTypeText, Text: delta.Text})
		case sdk.InputJSONDelta:
			if tb := toolBlocks[idx]; tb != nil {
				tb.fragments = append(tb.fragments, delta.PartialJSON)
			}
			return nil
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil
			}
			return s.emit(model.Chunk{Type: model.ChunkTypeThinking, ThinkingDelta: delta.Thinking})
		default:
			return nil
		}
	case sdk.ContentBlockStopEvent:
		idx := int(ev.Index)
		if tb := toolBlocks[idx]; tb != nil {
			delete(toolBlocks, idx)
			part := &model.ToolUsePart{ID: tb.id, Name: tools.Ident(tb.name), Input: []byte(tb.finalInput())}
			return s.emit(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: part})
		}
		return nil
	case sdk.MessageDeltaEvent:
		*stopReason = string(ev.Delta.StopReason)
		usage := model.TokenUsage{
			InputTokens: int(ev.Usage.InputTokens), OutputTokens: int(ev.Usage.OutputTokens),
			TotalTokens: int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
		}
		return s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage})
	case sdk.MessageStopEvent:
		return s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: *stopReason})
	}
	return nil
}

type toolBuffer struct {
	id, name  string
	fragments []string
}

func (tb *toolBuffer) finalInput() string {
	if len(tb.fragments) == 0 {
		return "{}"
	}
	joined := strings.Join(tb.fragments, "")
	if strings.TrimSpace(joined) == "" {
		return "{}"
	}
	return joined
}
