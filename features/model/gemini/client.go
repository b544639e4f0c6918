// Package gemini implements model.Client on top of Google's Gen AI SDK
// (google.golang.org/genai), enriched from haasonsaas-nexus's
// internal/agent/providers/google.go since the teacher carries no Gemini
// provider of its own. Keeps that file's message/tool conversion shape
// (system instruction via config, user/model roles, FunctionCall/
// FunctionResponse parts) but bridges to internal/rca/model's typed-Part
// Message/Response instead of google.go's flat agent.CompletionMessage, and
// drives both Complete and Stream off the SDK's streaming iterator since
// that is the only generation path the pack's Gemini usage grounds.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
)

// ModelsClient is the subset of genai.Client.Models used by Client, so
// tests can substitute a mock for the SDK.
type ModelsClient interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Options configures the Gemini client's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
}

// Client implements model.Client on the Gemini Generate Content API.
type Client struct {
	models       ModelsClient
	defaultModel string
	maxTok       int
}

// New builds a Client from a Gemini models client.
func New(models ModelsClient, opts Options) (*Client, error) {
	if models == nil {
		return nil, errors.New("gemini models client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{models: models, defaultModel: opts.DefaultModel, maxTok: opts.MaxTokens}, nil
}

// NewFromAPIKey builds a Client using the SDK's default HTTP transport, for
// per-workspace BYO-Gemini configuration (domain.LLMGemini).
func NewFromAPIKey(ctx context.Context, apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return New(c.Models, Options{DefaultModel: defaultModel, MaxTokens: maxTokens})
}

// Complete implements model.Client.Complete by draining a stream, since the
// pack's only grounded Gemini generation path is GenerateContentStream.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	st, err := c.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	resp := &model.Response{}
	var text strings.Builder
	for {
		chunk, err := st.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch chunk.Type {
		case model.ChunkTypeText:
			text.WriteString(chunk.Text)
		case model.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, *chunk.ToolCall)
			}
		case model.ChunkTypeUsage:
			if chunk.UsageDelta != nil {
				resp.Usage = *chunk.UsageDelta
			}
		case model.ChunkTypeStop:
			resp.StopReason = chunk.StopReason
		}
	}
	if text.Len() > 0 {
		resp.Content = append(resp.Content, model.Message{
			Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: text.String()}},
		})
	}
	return resp, nil
}

// Stream implements model.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	contents, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req, systemInstruction(req.Messages))
	if config.MaxOutputTokens == 0 && c.maxTok > 0 {
		config.MaxOutputTokens = int32(c.maxTok)
	}
	it := c.models.GenerateContentStream(ctx, modelID, contents, config)
	return newStreamer(ctx, it), nil
}

func systemInstruction(msgs []*model.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		if m == nil || m.Role != model.RoleSystem {
			continue
		}
		for _, p := range m.Parts {
			if v, ok := p.(model.TextPart); ok {
				sb.WriteString(v.Text)
			}
		}
	}
	return sb.String()
}

func buildConfig(req *model.Request, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 0
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if req.Temperature > 0 {
		t := req.Temperature
		config.Temperature = &t
	}
	if len(req.Tools) > 0 {
		config.Tools = encodeTools(req.Tools)
	}
	return config
}

func encodeMessages(msgs []*model.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, m := range msgs {
		if m == nil || m.Role == model.RoleSystem {
			continue
		}
		content := &genai.Content{}
		switch m.Role {
		case model.RoleUser:
			content.Role = genai.RoleUser
		case model.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			return nil, fmt.Errorf("gemini: unsupported message role %q", m.Role)
		}
		for _, part := range m.Parts {
			switch v := part.(type) {
			case model.TextPart:
				if v.Text != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: v.Text})
				}
			case model.ToolUsePart:
				var args map[string]any
				if len(v.Input) > 0 {
					if err := json.Unmarshal(v.Input, &args); err != nil {
						args = map[string]any{}
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: string(v.Name), Args: args},
				})
			case model.ToolResultPart:
				var respData map[string]any
				if err := json.Unmarshal([]byte(v.Content), &respData); err != nil {
					respData = map[string]any{"result": v.Content, "error": v.IsError}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{Name: v.ToolUseID, Response: respData},
				})
			}
		}
		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("gemini: at least one user/assistant message is required")
	}
	return out, nil
}

func encodeTools(defs []*model.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		var schemaMap map[string]any
		if len(def.InputSchema) > 0 {
			_ = json.Unmarshal(def.InputSchema, &schemaMap)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(def.Name),
			Description: def.Description,
			Parameters:  toGeminiSchema(schemaMap),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON Schema map to Gemini's Schema type.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}
	return schema
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "rate limit")
}
