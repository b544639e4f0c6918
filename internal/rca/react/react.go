// Package react implements the Thought→Action→Observation loop of spec.md
// §4.4 as an explicit state object rather than coroutines: each call to
// Engine.Run drives one Turn to a final answer, emitting frames through a
// callback the caller persists and publishes before the loop proceeds.
package react

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// Budgets bounds one Run: spec.md §4.4's {max_steps, wall_time,
// max_observation_bytes}.
type Budgets struct {
	MaxSteps            int
	WallTime            time.Duration
	MaxObservationBytes int
	ToolTimeout         time.Duration
}

// DefaultBudgets matches spec.md §4.4's stated defaults.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxSteps:            10,
		WallTime:            120 * time.Second,
		MaxObservationBytes: tools.MaxObservationBytes,
		ToolTimeout:         tools.DefaultTimeout,
	}
}

// Frame is one emitted ReAct event, handed to the caller (the Orchestrator
// Worker) to persist as a TurnStep and publish to the Event Bus in the same
// order it was produced.
type Frame struct {
	Kind     string // "thinking" | "tool_start" | "tool_end" | "status"
	ToolName string
	Text     string
	IsError  bool
}

// ErrLLMProtocol is returned when three consecutive model responses fail to
// parse as either a tool call or a final answer (spec.md §4.4 step 2).
var ErrLLMProtocol = errors.New("react: three consecutive malformed model responses")

// ToolSet resolves a tool by the name the model requested.
type ToolSet interface {
	Lookup(name tools.Ident) (tools.Tool, bool)
	Definitions() []*model.ToolDefinition
}

// Engine drives one Turn's ReAct loop.
type Engine struct {
	Model   model.Client
	Logger  telemetry.Logger
	Budgets Budgets
}

// Run executes the loop to completion, returning the final answer text. emit
// is called once per frame, in emission order, before the next LLM or tool
// call proceeds — callers must persist (assign sequence) and publish
// synchronously inside emit so ordering is preserved end to end.
func (e *Engine) Run(ctx context.Context, systemPrompt, userMessage string, toolset ToolSet, emit func(Frame) error) (string, error) {
	budgets := e.Budgets
	if budgets.MaxSteps == 0 {
		budgets = DefaultBudgets()
	}
	deadline := time.Now().Add(budgets.WallTime)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	history := []*model.Message{
		{Role: model.RoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: userMessage}}},
	}

	malformed := 0
	forcedFinal := false
	for step := 0; ; step++ {
		overBudget := step >= budgets.MaxSteps || time.Now().After(deadline)
		if overBudget && !forcedFinal {
			forcedFinal = true
			history = append(history, &model.Message{
				Role: model.RoleUser,
				Parts: []model.Part{model.TextPart{
					Text: "Budget exhausted. You must now produce the final answer directly, with no further tool calls.",
				}},
			})
		}

		resp, err := e.Model.Complete(ctx, &model.Request{
			Messages:    history,
			Tools:       toolset.Definitions(),
			Temperature: 0.1,
		})
		if err != nil {
			return "", fmt.Errorf("react: model completion: %w", err)
		}

		call, final, ok := classify(resp)
		if !ok {
			malformed++
			if malformed >= 3 {
				return "", ErrLLMProtocol
			}
			history = append(history, &model.Message{Role: model.RoleAssistant, Parts: resp.Content[0].Parts})
			continue
		}
		malformed = 0

		if final != "" {
			return final, nil
		}
		if forcedFinal {
			// Forced-final turn produced a tool call instead of text; treat its
			// text content (if any) as the answer, else fail the turn.
			for _, m := range resp.Content {
				for _, p := range m.Parts {
					if tp, isText := p.(model.TextPart); isText && strings.TrimSpace(tp.Text) != "" {
						return tp.Text, nil
					}
				}
			}
			return "", fmt.Errorf("react: forced final-answer turn still requested a tool call")
		}

		if err := emit(Frame{Kind: "thinking", Text: thoughtOf(resp)}); err != nil {
			return "", err
		}
		if err := emit(Frame{Kind: "tool_start", ToolName: string(call.Name)}); err != nil {
			return "", err
		}

		obs := e.invoke(ctx, toolset, call, budgets)
		history = append(history, assistantToolCallMessage(call))
		history = append(history, &model.Message{
			Role: model.RoleUser,
			Parts: []model.Part{model.ToolResultPart{
				ToolUseID: call.ID,
				Content:   obs.Text,
				IsError:   obs.IsError,
			}},
		})

		if err := emit(Frame{Kind: "tool_end", ToolName: string(call.Name), Text: summarize(obs.Text), IsError: obs.IsError}); err != nil {
			return "", err
		}
	}
}

func classify(resp *model.Response) (call model.ToolUsePart, final string, ok bool) {
	if len(resp.ToolCalls) > 0 {
		return resp.ToolCalls[0], "", true
	}
	if len(resp.Content) == 1 {
		for _, p := range resp.Content[0].Parts {
			if tp, isText := p.(model.TextPart); isText && strings.TrimSpace(tp.Text) != "" {
				return model.ToolUsePart{}, tp.Text, true
			}
		}
	}
	return model.ToolUsePart{}, "", false
}

func thoughtOf(resp *model.Response) string {
	for _, m := range resp.Content {
		for _, p := range m.Parts {
			if tp, isThinking := p.(model.ThinkingPart); isThinking {
				return tp.Text
			}
		}
	}
	return ""
}

func assistantToolCallMessage(call model.ToolUsePart) *model.Message {
	return &model.Message{Role: model.RoleAssistant, Parts: []model.Part{call}}
}

func (e *Engine) invoke(ctx context.Context, toolset ToolSet, call model.ToolUsePart, budgets Budgets) tools.Observation {
	tool, found := toolset.Lookup(call.Name)
	if !found {
		return tools.Errorf(fmt.Sprintf("unknown tool %q", call.Name))
	}
	spec := tool.Spec()
	if spec.InputSchema != nil {
		v, err := tools.NewValidator(spec.Name, spec.InputSchema)
		if err != nil {
			return tools.Errorf("internal: schema compile failed")
		}
		if err := v.Validate(call.Input); err != nil {
			return tools.Errorf("invalid arguments: " + err.Error())
		}
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = budgets.ToolTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	obs, err := tool.Invoke(callCtx, []byte(call.Input))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return tools.Errorf(fmt.Sprintf("timeout after %s", timeout))
		}
		return tools.Errorf(err.Error())
	}
	obs.Text = tools.Truncate(obs.Text)
	return obs
}

func summarize(text string) string {
	const max = 500
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
