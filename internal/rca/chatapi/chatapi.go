// Package chatapi implements the admission-time surface spec.md §6 names
// under "Inbound from Chat API": sending a message, streaming a turn's
// frames, and session/turn CRUD. It is the only place admission-order
// guards (Prompt Guard, Quota Gate) run.
package chatapi

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/ids"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/policy"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/queue"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/stream"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
)

const (
	minMessageLen = 1
	maxMessageLen = 10000
	maxListLimit  = 250
)

// Service implements the Chat API admission path and session/turn CRUD.
type Service struct {
	Sessions   domain.SessionStore
	Turns      domain.TurnStore
	Jobs       domain.JobStore
	Security   domain.SecurityStore
	LLMConfigs domain.LLMConfigStore // optional; nil means quota always applies

	Guard policy.PromptGuard
	Quota policy.QuotaGate
	Queue queue.Transport
	Bus   stream.Bus

	DailyLimit func(workspace string) int64
	Logger     telemetry.Logger
}

// SendMessageInput is the POST /chat request body.
type SendMessageInput struct {
	Workspace string
	UserID    string
	Message   string
	SessionID string // optional; empty creates a new session
}

// SendMessageResult is the POST /chat response body.
type SendMessageResult struct {
	TurnID    string
	SessionID string
}

// SendMessage implements spec.md §4.1's admission algorithm: validate,
// prompt-guard, quota-gate, then create session/turn/job and enqueue.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (SendMessageResult, error) {
	n := utf8.RuneCountInString(in.Message)
	if n < minMessageLen || n > maxMessageLen {
		return SendMessageResult{}, Validation("message", fmt.Sprintf("length must be between %d and %d runes", minMessageLen, maxMessageLen))
	}

	if s.Guard != nil {
		decision, err := s.Guard.Classify(ctx, in.Workspace, in.Message)
		if err != nil {
			s.Logger.Error(ctx, "prompt guard classify failed", err)
			decision = policy.GuardDecision{Verdict: policy.VerdictDegraded, Reason: "classifier error: " + err.Error()}
		}
		if decision.Verdict != policy.VerdictAllow {
			_ = s.Security.RecordEvent(ctx, domain.SecurityEvent{
				ID:            ids.New(),
				Workspace:     in.Workspace,
				Verdict:       string(decision.Verdict),
				Reason:        decision.Reason,
				MessagePrefix: domain.TruncateMessagePrefix(in.Message),
				CreatedAt:     time.Now(),
			})
			if decision.Verdict == policy.VerdictBlock {
				return SendMessageResult{}, PolicyViolation()
			}
			// Degraded: fail-open by default (spec.md §4.7); the failing-closed
			// variant is a guard-construction-time choice (guard.Options.FailClosed),
			// not something decided per request here.
		}
	}

	if s.quotaApplies(ctx, in.Workspace) {
		limit := int64(10)
		if s.DailyLimit != nil {
			limit = s.DailyLimit(in.Workspace)
		}
		ok, _, err := s.Quota.Admit(ctx, in.Workspace, "rca_request")
		if err != nil {
			return SendMessageResult{}, Internal(err)
		}
		if !ok {
			resetAt := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
			return SendMessageResult{}, QuotaExceeded(QuotaExceededDetail{Limit: limit, ResetAt: resetAt.Format(time.RFC3339)})
		}
	}

	sess, err := s.resolveSession(ctx, in)
	if err != nil {
		return SendMessageResult{}, err
	}

	turnID := ids.New()
	jobID := ids.New()
	now := time.Now()

	turn, err := s.Turns.CreateTurn(ctx, domain.Turn{
		ID: turnID, Workspace: in.Workspace, SessionID: sess.ID,
		UserMessage: in.Message, Status: domain.TurnPending, JobID: jobID,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return SendMessageResult{}, Internal(err)
	}
	if _, err := s.Turns.AppendStep(ctx, domain.TurnStep{
		ID: ids.New(), TurnID: turn.ID, Type: domain.StepStatus,
		Content: "Queued", Status: domain.StepCompleted, CreatedAt: now,
	}); err != nil {
		return SendMessageResult{}, Internal(err)
	}

	if _, err := s.Jobs.CreateJob(ctx, domain.Job{
		ID: jobID, Workspace: in.Workspace, TurnID: turn.ID,
		Status: domain.JobQueued, MaxRetries: domain.DefaultMaxRetries,
		RequestedContext: domain.RequestedContext{Query: in.Message, UserID: in.UserID},
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		return SendMessageResult{}, Internal(err)
	}

	if err := s.Queue.Send(ctx, jobID, 0); err != nil {
		if _, ferr := s.Turns.TransitionTurn(ctx, in.Workspace, turn.ID, domain.TurnFailed, ""); ferr != nil {
			s.Logger.Error(ctx, "persist failed turn after enqueue failure failed", ferr)
		}
		return SendMessageResult{}, TransportUnavailable(err.Error())
	}

	return SendMessageResult{TurnID: turn.ID, SessionID: sess.ID}, nil
}

// quotaApplies implements spec.md §4.5/§4.1: quota rules apply only to
// workspaces on the platform-provided LLM; BYO-LLM workspaces bypass the
// daily counter entirely. Absent configuration (or a lookup error) defaults
// to applying quota, the conservative choice.
func (s *Service) quotaApplies(ctx context.Context, workspace string) bool {
	if s.Quota == nil {
		return false
	}
	if s.LLMConfigs == nil {
		return true
	}
	cfg, err := s.LLMConfigs.LoadLLMConfig(ctx, workspace)
	if err != nil {
		return true
	}
	return cfg.Provider == domain.LLMPlatform
}

func (s *Service) resolveSession(ctx context.Context, in SendMessageInput) (domain.Session, error) {
	now := time.Now()
	if in.SessionID != "" {
		return s.Sessions.LoadSession(ctx, in.Workspace, in.SessionID)
	}
	return s.Sessions.CreateSession(ctx, domain.Session{
		ID: ids.New(), Workspace: in.Workspace, Origin: domain.OriginWeb,
		UserID: in.UserID, CreatedAt: now, UpdatedAt: now,
	})
}

// StreamTurn implements the Stream Endpoint contract of spec.md §4.6: replay
// persisted steps, then (if the turn is still in-flight) subscribe-before-read
// and drain live frames, deduplicating by sequence, until a terminal frame.
func (s *Service) StreamTurn(ctx context.Context, workspace, turnID string, emit func(stream.Event) error) error {
	turn, err := s.Turns.LoadTurn(ctx, workspace, turnID)
	if err != nil {
		return NotFound("turn", turnID)
	}

	// For an in-flight turn, subscribe before reading the persisted steps, not
	// after: otherwise a frame appended between the read and the subscribe
	// would never reach this stream. The dedup check below
	// (evt.Sequence() <= lastSeq) drops whatever the live subscription
	// redelivers that the replay already emitted. A terminal turn is served
	// from the persisted steps alone.
	terminal := turn.Status == domain.TurnCompleted || turn.Status == domain.TurnFailed
	var sub stream.Subscription
	if !terminal {
		sub, err = s.Bus.Subscribe(ctx, turnID, 0)
		if err != nil {
			return Internal(err)
		}
		defer sub.Close()
	}

	steps, err := s.Turns.ListSteps(ctx, turnID)
	if err != nil {
		return Internal(err)
	}
	var lastSeq uint32
	for _, step := range steps {
		if err := emit(stepToEvent(step)); err != nil {
			return err
		}
		lastSeq = step.Sequence
	}

	if terminal {
		return emitTerminal(turn, emit)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if evt.Sequence() <= lastSeq {
				continue // already replayed
			}
			lastSeq = evt.Sequence()
			if err := emit(evt); err != nil {
				return err
			}
			if evt.Type() == stream.EventComplete || evt.Type() == stream.EventError {
				return nil
			}
		}
	}
}

func emitTerminal(turn domain.Turn, emit func(stream.Event) error) error {
	if turn.Status == domain.TurnCompleted {
		return emit(stream.CompleteEvent{
			Base: stream.Base{EvtType: stream.EventComplete, Turn: turn.ID},
			Data: stream.CompletePayload{FinalResponse: turn.FinalResponse},
		})
	}
	return emit(stream.ErrorEvent{
		Base: stream.Base{EvtType: stream.EventError, Turn: turn.ID},
		Data: stream.ErrorPayload{Message: "turn failed"},
	})
}

func stepToEvent(step domain.TurnStep) stream.Event {
	base := stream.Base{Turn: step.TurnID, Seq: step.Sequence}
	switch step.Type {
	case domain.StepToolCall:
		base.EvtType = stream.EventToolEnd
		return stream.ToolEndEvent{Base: base, Data: stream.ToolEndPayload{
			ToolName: step.ToolName, Result: step.Content, IsError: step.Status == domain.StepFailed,
		}}
	case domain.StepThinking:
		base.EvtType = stream.EventThinking
		return stream.ThinkingEvent{Base: base, Data: stream.ThinkingPayload{Text: step.Content}}
	default:
		base.EvtType = stream.EventStatus
		return stream.StatusEvent{Base: base, Data: stream.StatusPayload{Message: step.Content}}
	}
}

// GetSession loads one session, scoped to workspace.
func (s *Service) GetSession(ctx context.Context, workspace, id string) (domain.Session, error) {
	sess, err := s.Sessions.LoadSession(ctx, workspace, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, NotFound("session", id)
	}
	return sess, err
}

// ListSessions lists sessions for workspace, bounded by spec.md §6's
// limit≤250 / offset≥0 contract.
func (s *Service) ListSessions(ctx context.Context, workspace string, limit, offset int) ([]domain.Session, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, Validation("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit))
	}
	if offset < 0 {
		return nil, Validation("offset", "must be >= 0")
	}
	return s.Sessions.ListSessions(ctx, workspace, limit, offset)
}

// UpdateSession renames a session.
func (s *Service) UpdateSession(ctx context.Context, workspace, id, title string) (domain.Session, error) {
	return s.Sessions.UpdateTitle(ctx, workspace, id, title)
}

// DeleteSession deletes a session and its turns/steps.
func (s *Service) DeleteSession(ctx context.Context, workspace, id string) error {
	return s.Sessions.DeleteSession(ctx, workspace, id)
}

// GetTurn loads one turn, scoped to workspace.
func (s *Service) GetTurn(ctx context.Context, workspace, id string) (domain.Turn, error) {
	turn, err := s.Turns.LoadTurn(ctx, workspace, id)
	if errors.Is(err, domain.ErrTurnNotFound) {
		return domain.Turn{}, NotFound("turn", id)
	}
	return turn, err
}

// SubmitFeedback implements POST /turns/{id}/feedback.
func (s *Service) SubmitFeedback(ctx context.Context, workspace, turnID, userID string, score int, comment string) error {
	if score != -1 && score != 1 {
		return Validation("score", "must be -1 or +1")
	}
	if len(comment) > 1000 {
		return Validation("comment", "must be <= 1000 characters")
	}
	if err := s.Turns.SubmitFeedback(ctx, workspace, turnID, userID, score, comment); err != nil {
		if errors.Is(err, domain.ErrFeedbackExists) {
			return Validation("feedback", "already submitted for this turn and user")
		}
		return Internal(err)
	}
	return nil
}
