// Package worker implements the Orchestrator Worker of spec.md §4.2: the
// process that claims queued Jobs, drives the ReAct loop, and finalizes the
// owning Turn.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/ids"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/model"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/queue"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/react"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/stream"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/tools"
)

// Config bounds one worker pool instance.
type Config struct {
	Concurrency     int
	MaxTurnDuration time.Duration
	VisibilityTimeout time.Duration
	DefaultMaxRetries int
}

// DefaultConfig matches spec.md's stated defaults (120s max turn duration,
// max_retries=3).
func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		MaxTurnDuration:   120 * time.Second,
		VisibilityTimeout: 150 * time.Second,
		DefaultMaxRetries: domain.DefaultMaxRetries,
	}
}

// ModelResolver builds a model.Client for a workspace's LLMConfig, per
// spec.md §4.5's provider-selection algorithm. Concrete implementation
// lives in features/model (wires anthropic/openai/gemini clients behind
// the Gateway).
type ModelResolver interface {
	Resolve(ctx context.Context, cfg domain.LLMConfig) (model.Client, error)
}

// ToolBuilder builds the per-turn tool set from the workspace's available
// (provider, capability) handles (spec.md §4.1 step 4, §4.3).
type ToolBuilder interface {
	Build(ctx context.Context, workspace string, handles []provider.Handle, opener provider.Opener) (react.ToolSet, error)
}

// Pool is the Orchestrator Worker: a pool of N concurrent tasks, each
// draining one job from Queue at a time and running it end to end
// (spec.md §5 "Scheduling model").
type Pool struct {
	Config

	Jobs      domain.JobStore
	Turns     domain.TurnStore
	LLMConfig domain.LLMConfigStore
	Providers provider.Registry
	Queue     queue.Transport
	Bus       stream.Bus
	Models    ModelResolver
	ToolSet   ToolBuilder
	SystemPrompt string

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Run drains the queue until ctx is canceled, processing up to
// Config.Concurrency jobs concurrently via an errgroup-bounded pool
// (spec.md §5 "Worker process is a pool of N concurrent tasks").
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.Concurrency))

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		default:
		}
		msgs, err := p.Queue.Receive(ctx, max(1, p.Concurrency), p.VisibilityTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				_ = g.Wait()
				return nil
			}
			p.Logger.Error(ctx, "queue receive failed", err)
			continue
		}
		for _, m := range msgs {
			msg := m
			g.Go(func() error {
				p.runOnce(gctx, msg)
				return nil
			})
		}
	}
}

// runOnce implements spec.md §4.2 steps 1–7 for one delivered message.
func (p *Pool) runOnce(ctx context.Context, msg queue.Message) {
	jobID := msg.JobID
	job, err := p.Jobs.LoadJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			_ = p.Queue.Delete(ctx, msg) // malformed/stale id: ack and drop
			return
		}
		p.Logger.Error(ctx, "load job failed", err, telemetry.Str("job_id", jobID))
		return
	}

	if job.Status != domain.JobQueued {
		_ = p.Queue.Delete(ctx, msg) // duplicate delivery
		return
	}
	now := time.Now()
	if job.BackoffUntil != nil && job.BackoffUntil.After(now) {
		_ = p.Queue.ChangeVisibility(ctx, msg, job.BackoffUntil.Sub(now))
		return
	}

	running, err := p.Jobs.ClaimQueued(ctx, jobID, now)
	if err != nil {
		// Another worker won the race; treat as duplicate delivery.
		_ = p.Queue.Delete(ctx, msg)
		return
	}

	if _, err := p.Turns.TransitionTurn(ctx, running.Workspace, running.TurnID, domain.TurnProcessing, ""); err != nil {
		p.Logger.Error(ctx, "persist processing turn failed", err, telemetry.Str("turn_id", running.TurnID))
	}

	turnCtx, cancel := context.WithTimeout(ctx, p.MaxTurnDuration)
	defer cancel()

	sink, err := p.Bus.Sink(turnCtx, running.TurnID)
	if err != nil {
		p.Logger.Error(ctx, "open turn sink failed", err, telemetry.Str("turn_id", running.TurnID))
	}

	finalResp, execErr := p.execute(turnCtx, running, sink)

	if execErr == nil {
		if _, err := p.Turns.TransitionTurn(ctx, running.Workspace, running.TurnID, domain.TurnCompleted, finalResp); err != nil {
			p.Logger.Error(ctx, "persist completed turn failed", err)
		}
		if _, err := p.Jobs.Complete(ctx, jobID, time.Now()); err != nil {
			p.Logger.Error(ctx, "persist completed job failed", err)
		}
		p.publishTerminal(ctx, sink, running.TurnID, stream.CompleteEvent{
			Base: stream.Base{EvtType: stream.EventComplete, Turn: running.TurnID},
			Data: stream.CompletePayload{FinalResponse: finalResp},
		})
		_ = p.Queue.Delete(ctx, msg)
		return
	}

	if retryable(execErr) && running.Retries < effectiveMaxRetries(running, p.DefaultMaxRetries) {
		backoff := domain.NextBackoff(time.Now(), running.Retries)
		if _, err := p.Jobs.Requeue(ctx, jobID, time.Now(), backoff); err != nil {
			p.Logger.Error(ctx, "requeue job failed", err)
		}
		_ = p.Queue.ChangeVisibility(ctx, msg, time.Until(backoff))
		return
	}

	if _, err := p.Turns.TransitionTurn(ctx, running.Workspace, running.TurnID, domain.TurnFailed, ""); err != nil {
		p.Logger.Error(ctx, "persist failed turn failed", err)
	}
	if _, err := p.Jobs.Fail(ctx, jobID, time.Now(), execErr.Error()); err != nil {
		p.Logger.Error(ctx, "persist failed job failed", err)
	}
	p.publishTerminal(ctx, sink, running.TurnID, stream.ErrorEvent{
		Base: stream.Base{EvtType: stream.EventError, Turn: running.TurnID},
		Data: stream.ErrorPayload{Message: execErr.Error()},
	})
	_ = p.Queue.Delete(ctx, msg)
}

func (p *Pool) execute(ctx context.Context, job domain.Job, sink stream.Sink) (string, error) {
	cfg, err := p.LLMConfig.LoadLLMConfig(ctx, job.Workspace)
	if err != nil {
		return "", fmt.Errorf("resolve context: %w", err)
	}
	chatModel, err := p.Models.Resolve(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("resolve model: %w", err)
	}
	handles, err := p.Providers.ListCapabilities(ctx, job.Workspace)
	if err != nil {
		return "", fmt.Errorf("resolve integrations: %w", err)
	}
	toolset, err := p.ToolSet.Build(ctx, job.Workspace, handles, p.Providers)
	if err != nil {
		return "", fmt.Errorf("build tool set: %w", err)
	}

	p.emitStatus(ctx, sink, job.TurnID, "Starting analysis")

	engine := &react.Engine{Model: chatModel, Logger: p.Logger, Budgets: react.Budgets{
		MaxSteps: 10, WallTime: p.MaxTurnDuration, MaxObservationBytes: tools.MaxObservationBytes, ToolTimeout: tools.DefaultTimeout,
	}}

	return engine.Run(ctx, p.SystemPrompt, job.RequestedContext.Query, toolset, func(f react.Frame) error {
		return p.emitFrame(ctx, sink, job.TurnID, f)
	})
}

// emitStatus persists a status TurnStep to get its durable, gap-free
// sequence number, then publishes the corresponding frame onto the bus —
// the bus is never the frame's source of truth (internal/rca/stream).
func (p *Pool) emitStatus(ctx context.Context, sink stream.Sink, turnID, msg string) {
	step, err := p.Turns.AppendStep(ctx, domain.TurnStep{
		ID: ids.New(), TurnID: turnID, Type: domain.StepStatus,
		Content: msg, Status: domain.StepCompleted, CreatedAt: time.Now(),
	})
	if err != nil {
		p.Logger.Error(ctx, "persist status step failed", err, telemetry.Str("turn_id", turnID))
		return
	}
	if sink == nil {
		return
	}
	_ = sink.Send(ctx, stream.StatusEvent{
		Base: stream.Base{EvtType: stream.EventStatus, Turn: turnID, Seq: step.Sequence},
		Data: stream.StatusPayload{Message: msg},
	})
}

// emitFrame persists each ReAct frame as a TurnStep before publishing it,
// mirroring what SendMessage already does for the bootstrap "Queued" step.
func (p *Pool) emitFrame(ctx context.Context, sink stream.Sink, turnID string, f react.Frame) error {
	var stepType domain.StepType
	var stepStatus domain.StepStatus
	switch f.Kind {
	case "thinking":
		stepType, stepStatus = domain.StepThinking, domain.StepCompleted
	case "tool_start":
		stepType, stepStatus = domain.StepToolCall, domain.StepRunning
	case "tool_end":
		stepType, stepStatus = domain.StepToolCall, domain.StepCompleted
		if f.IsError {
			stepStatus = domain.StepFailed
		}
	default:
		return nil
	}

	step, err := p.Turns.AppendStep(ctx, domain.TurnStep{
		ID: ids.New(), TurnID: turnID, Type: stepType, ToolName: f.ToolName,
		Content: f.Text, Status: stepStatus, CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("persist turn step: %w", err)
	}
	if sink == nil {
		return nil
	}

	var evt stream.Event
	switch f.Kind {
	case "thinking":
		evt = stream.ThinkingEvent{Base: stream.Base{EvtType: stream.EventThinking, Turn: turnID, Seq: step.Sequence}, Data: stream.ThinkingPayload{Text: f.Text}}
	case "tool_start":
		evt = stream.ToolStartEvent{Base: stream.Base{EvtType: stream.EventToolStart, Turn: turnID, Seq: step.Sequence}, Data: stream.ToolStartPayload{ToolName: f.ToolName}}
	case "tool_end":
		evt = stream.ToolEndEvent{Base: stream.Base{EvtType: stream.EventToolEnd, Turn: turnID, Seq: step.Sequence}, Data: stream.ToolEndPayload{ToolName: f.ToolName, Result: f.Text, IsError: f.IsError}}
	}
	return sink.Send(ctx, evt)
}

func (p *Pool) publishTerminal(ctx context.Context, sink stream.Sink, turnID string, evt stream.Event) {
	if sink == nil {
		return
	}
	_ = sink.Send(ctx, evt)
	_ = sink.Close(ctx)
}

func effectiveMaxRetries(j domain.Job, fallback int) int {
	if j.MaxRetries > 0 {
		return j.MaxRetries
	}
	return fallback
}

// retryable classifies an execution error per spec.md §7: timeouts and
// transient upstream failures are retried; malformed-protocol failures are
// not (they will not resolve themselves on retry).
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, react.ErrLLMProtocol) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, model.ErrRateLimited) {
		return true
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
