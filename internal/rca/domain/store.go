package domain

import (
	"context"
	"time"
)

// SessionStore persists Session lifecycle state. Implementations must be
// durable: failures are surfaced so callers can fail fast rather than lose
// conversation state.
type SessionStore interface {
	// CreateSession creates a new session, or returns the existing one for
	// (workspace, origin, externalThreadKey) when origin is chat-platform and
	// the coordinates already exist (spec.md §3 uniqueness invariant).
	CreateSession(ctx context.Context, s Session) (Session, error)
	LoadSession(ctx context.Context, workspace, id string) (Session, error)
	// FindByExternalThread looks up a chat-platform session by its unique
	// (workspace, origin, externalThreadKey) coordinates. Returns
	// ErrSessionNotFound when absent.
	FindByExternalThread(ctx context.Context, workspace string, origin SessionOrigin, externalThreadKey string) (Session, error)
	UpdateTitle(ctx context.Context, workspace, id, title string) (Session, error)
	// DeleteSession cascades to the session's turns and turn steps.
	DeleteSession(ctx context.Context, workspace, id string) error
	ListSessions(ctx context.Context, workspace string, limit, offset int) ([]Session, error)
}

// TurnStore persists Turn and TurnStep records.
type TurnStore interface {
	CreateTurn(ctx context.Context, t Turn) (Turn, error)
	LoadTurn(ctx context.Context, workspace, id string) (Turn, error)
	// TransitionTurn applies a status transition atomically, rejecting
	// transitions outside pending->processing->{completed|failed}. When
	// status is terminal, finalResponse is persisted alongside.
	TransitionTurn(ctx context.Context, workspace, id string, status TurnStatus, finalResponse string) (Turn, error)
	ListTurnsBySession(ctx context.Context, workspace, sessionID string) ([]Turn, error)

	// AppendStep assigns the next gap-free sequence number for the turn
	// under a row lock and persists the step. Returns the assigned step.
	AppendStep(ctx context.Context, step TurnStep) (TurnStep, error)
	ListSteps(ctx context.Context, turnID string) ([]TurnStep, error)

	SubmitFeedback(ctx context.Context, workspace, turnID, userID string, score int, comment string) error
	AddComment(ctx context.Context, workspace, turnID, userID, comment string) error
}

// JobStore persists Job records and enforces the status machine and retry
// policy described in spec.md §3.
type JobStore interface {
	CreateJob(ctx context.Context, j Job) (Job, error)
	LoadJob(ctx context.Context, id string) (Job, error)

	// ClaimQueued atomically transitions a queued job (whose backoff_until,
	// if set, has elapsed) to running with started_at=now. Returns
	// ErrJobNotFound if the job is not in a claimable state (duplicate
	// delivery or still backing off); callers must treat that as a no-op ack
	// or a requeue-with-delay, respectively — see ErrJobNotClaimable.
	ClaimQueued(ctx context.Context, id string, now time.Time) (Job, error)

	// Complete transitions a running job to completed with finished_at=now.
	Complete(ctx context.Context, id string, now time.Time) (Job, error)

	// Fail transitions a running job to failed with finished_at=now and
	// records errMsg.
	Fail(ctx context.Context, id string, now time.Time, errMsg string) (Job, error)

	// Requeue transitions a running job back to queued, incrementing
	// retries and setting backoff_until per the retry policy.
	Requeue(ctx context.Context, id string, now time.Time, backoffUntil time.Time) (Job, error)

	// ListStaleRunning returns jobs stuck in running with started_at older
	// than cutoff, for the stale-job reconciler.
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]Job, error)
}

// ErrJobNotClaimable indicates ClaimQueued found the job in a state that
// makes claiming a no-op (already running/terminal) or not-yet-eligible
// (still backing off).
type ErrJobNotClaimable struct {
	Reason       string // "duplicate" | "backoff"
	BackoffUntil time.Time
}

func (e *ErrJobNotClaimable) Error() string { return "job not claimable: " + e.Reason }

// QuotaStore persists per-(workspace,resource,window) admission counters.
type QuotaStore interface {
	// CheckAndIncrement atomically increments the counter for
	// (workspace, resource, windowKey) iff it is currently below limit.
	// Returns the post-increment count and ok=false when the limit was
	// already reached (count is unchanged in that case).
	CheckAndIncrement(ctx context.Context, workspace, resource, windowKey string, limit int64) (count int64, ok bool, err error)
}

// SecurityStore persists SecurityEvent records.
type SecurityStore interface {
	RecordEvent(ctx context.Context, e SecurityEvent) error
}

// LLMConfigStore is a read-only view over per-workspace LLM configuration,
// owned and written by the out-of-scope Billing/Workspace CRUD layer.
type LLMConfigStore interface {
	LoadLLMConfig(ctx context.Context, workspace string) (LLMConfig, error)
}

// IntegrationCredentialStore is a read-only view over per-workspace,
// per-provider integration credentials, owned and written by the
// out-of-scope Identity/Billing CRUD layer. The Provider Registry uses it to
// open Adapters with the right workspace's connection config.
type IntegrationCredentialStore interface {
	// LoadCredential returns the credential for (workspace, provider).
	// Returns ErrIntegrationNotConfigured if the workspace has not
	// configured that provider.
	LoadCredential(ctx context.Context, workspace string, provider IntegrationProvider) (IntegrationCredential, error)
	// ListCredentials returns every provider the workspace has configured,
	// for the Registry's ListCapabilities.
	ListCredentials(ctx context.Context, workspace string) ([]IntegrationCredential, error)
}
