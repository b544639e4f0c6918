package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

type fakeMessagesClient struct {
	resp    *sdk.Message
	err     error
	lastReq sdk.MessageNewParams
}

func (f *fakeMessagesClient) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.lastReq = body
	return f.resp, f.err
}

func (f *fakeMessagesClient) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func userMessage(text string) *model.Message {
	return &model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: text}}}
}

func TestNew_RequiresClientAndDefaultModel(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "claude-3"})
	require.Error(t, err)

	_, err = New(&fakeMessagesClient{}, Options{})
	require.Error(t, err)
}

func TestSanitizeToolName_ReplacesDisallowedRunes(t *testing.T) {
	require.Equal(t, "logs_search_cloudwatch", sanitizeToolName("logs.search.cloudwatch"))
	require.Equal(t, "code-search", sanitizeToolName("code-search"))
}

func TestEncodeTools_DetectsSanitizedNameCollision(t *testing.T) {
	defs := []*model.ToolDefinition{
		{Name: "logs.search.a"},
		{Name: "logs_search_a"}, // sanitizes to the same string as the above
	}
	_, _, err := encodeTools(defs)
	require.Error(t, err)
}

func TestComplete_RequiresAtLeastOneMessage(t *testing.T) {
	client, err := New(&fakeMessagesClient{}, Options{DefaultModel: "claude-3", MaxTokens: 1024})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}

func TestComplete_TranslatesTextAndToolUseResponse(t *testing.T) {
	fake := &fakeMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "root cause: bad deploy"},
			{Type: "tool_use", ID: "call-1", Name: "logs_search_cloudwatch", Input: json.RawMessage(`{"log_group":"/svc/api"}`)},
		},
		StopReason: "tool_use",
	}}
	client, err := New(fake, Options{DefaultModel: "claude-3", MaxTokens: 1024})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []*model.Message{userMessage("why errors?")},
		Tools:    []*model.ToolDefinition{{Name: "logs.search.cloudwatch"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	require.Equal(t, "root cause: bad deploy", resp.Content[0].Parts[0].(model.TextPart).Text)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, tools.Ident("logs.search.cloudwatch"), resp.ToolCalls[0].Name)
}

func TestComplete_MissingMaxTokensIsAnError(t *testing.T) {
	client, err := New(&fakeMessagesClient{}, Options{DefaultModel: "claude-3"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{Messages: []*model.Message{userMessage("hi")}})
	require.Error(t, err)
}

func TestComplete_RateLimitedErrorIsWrapped(t *testing.T) {
	fake := &fakeMessagesClient{err: model.ErrRateLimited}
	client, err := New(fake, Options{DefaultModel: "claude-3", MaxTokens: 1024})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{Messages: []*model.Message{userMessage("hi")}})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestIsRateLimited_DetectsVariousSignals(t *testing.T) {
	require.True(t, isRateLimited(model.ErrRateLimited))
	require.True(t, isRateLimited(errors.New("POST /v1/messages: 429 Too Many Requests")))
	require.True(t, isRateLimited(errors.New(`{"type":"rate_limit_error"}`)))
	require.False(t, isRateLimited(errors.New("invalid x-api-key")))
	require.False(t, isRateLimited(nil))
}
