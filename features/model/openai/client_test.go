package openai

import (
	"context"
	"testing"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

type fakeChatClient struct {
	resp    openaisdk.ChatCompletionResponse
	err     error
	lastReq openaisdk.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openaisdk.ChatCompletionRequest) (openaisdk.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func userMessage(text string) *model.Message {
	return &model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: text}}}
}

func TestNew_RequiresClientAndDefaultModel(t *testing.T) {
	_, err := New(Options{DefaultModel: "gpt-4"})
	require.Error(t, err)

	_, err = New(Options{Client: &fakeChatClient{}})
	require.Error(t, err)
}

func TestNewFromAzureConfig_RequiresAPIKeyAndBaseURL(t *testing.T) {
	_, err := NewFromAzureConfig("", "https://res.openai.azure.com", "", "gpt-4")
	require.Error(t, err)

	_, err = NewFromAzureConfig("key", "", "", "gpt-4")
	require.Error(t, err)
}

func TestComplete_RequiresAtLeastOneMessage(t *testing.T) {
	client, err := New(Options{Client: &fakeChatClient{}, DefaultModel: "gpt-4"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}

func TestComplete_TranslatesTextAndToolCallResponse(t *testing.T) {
	fake := &fakeChatClient{resp: openaisdk.ChatCompletionResponse{
		Choices: []openaisdk.ChatCompletionChoice{{
			Message: openaisdk.ChatCompletionMessage{
				Content: "root cause: bad deploy",
				ToolCalls: []openaisdk.ToolCall{{
					ID:       "call-1",
					Function: openaisdk.FunctionCall{Name: "logs.search.cloudwatch", Arguments: `{"log_group":"/svc/api"}`},
				}},
			},
			FinishReason: openaisdk.FinishReasonToolCalls,
		}},
		Usage: openaisdk.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client, err := New(Options{Client: fake, DefaultModel: "gpt-4"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &model.Request{Messages: []*model.Message{userMessage("why errors?")}})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	require.Equal(t, "root cause: bad deploy", resp.Content[0].Parts[0].(model.TextPart).Text)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, tools.Ident("logs.search.cloudwatch"), resp.ToolCalls[0].Name)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestComplete_RateLimitedErrorIsWrapped(t *testing.T) {
	fake := &fakeChatClient{err: &openaisdk.APIError{HTTPStatusCode: 429}}
	client, err := New(Options{Client: fake, DefaultModel: "gpt-4"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{Messages: []*model.Message{userMessage("hi")}})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestStream_ReportsUnsupported(t *testing.T) {
	client, err := New(Options{Client: &fakeChatClient{}, DefaultModel: "gpt-4"})
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), &model.Request{})
	require.ErrorIs(t, err, model.ErrStreamingUnsupported)
}

func TestEncodeRole_RejectsUnsupportedRole(t *testing.T) {
	_, err := encodeRole(model.ConversationRole("bogus"))
	require.Error(t, err)
}
