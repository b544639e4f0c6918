// Package domain defines the durable data model of the RCA orchestration
// core: Session, Turn, TurnStep, Job, LLMConfig, QuotaCounter, and
// SecurityEvent. These types are storage-agnostic; see features/store/mongo
// for the concrete persistence layer.
package domain

import (
	"errors"
	"time"
)

// SessionOrigin identifies where a conversation originated.
type SessionOrigin string

const (
	OriginWeb          SessionOrigin = "web"
	OriginChatPlatform SessionOrigin = "chat-platform"
	OriginOther        SessionOrigin = "other"
)

// Session is a conversation container scoped to exactly one workspace.
type Session struct {
	ID                 string
	Workspace          string
	Origin             SessionOrigin
	UserID             string
	ExternalThreadKey  string // e.g. "channel:thread" for chat-platform origin
	Title              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TurnStatus is the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnPending    TurnStatus = "pending"
	TurnProcessing TurnStatus = "processing"
	TurnCompleted  TurnStatus = "completed"
	TurnFailed     TurnStatus = "failed"
)

// Turn is one (question, answer) unit inside a Session.
type Turn struct {
	ID            string
	Workspace     string
	SessionID     string
	UserMessage   string
	FinalResponse string // empty until Status is terminal
	Status        TurnStatus
	JobID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StepType classifies a TurnStep.
type StepType string

const (
	StepStatus   StepType = "status"
	StepToolCall StepType = "tool_call"
	StepThinking StepType = "thinking"
)

// StepStatus is the execution state of a TurnStep.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// TurnStep is one observable event within a turn. Sequence is strictly
// increasing and gap-free per turn, starting at 1.
type TurnStep struct {
	ID        string
	TurnID    string
	Type      StepType
	ToolName  string
	Content   string
	Status    StepStatus
	Sequence  uint32
	CreatedAt time.Time
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobRunning      JobStatus = "running"
	JobWaitingInput JobStatus = "waiting_input"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
)

// DefaultMaxRetries is the default retry ceiling for a Job (spec.md §3).
const DefaultMaxRetries = 3

// RequestedContext is the opaque input bag a Job carries for its run.
type RequestedContext struct {
	Query          string            `json:"query"`
	UserID         string            `json:"user_id"`
	IntegrationHints map[string]string `json:"integration_hints,omitempty"`
}

// Job is the durable unit of work driving one Turn to completion.
type Job struct {
	ID               string
	Workspace        string
	TurnID           string
	Status           JobStatus
	Retries          int
	MaxRetries       int
	BackoffUntil     *time.Time
	Priority         int32
	RequestedContext RequestedContext
	StartedAt        *time.Time
	FinishedAt       *time.Time
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NextBackoff computes backoff_until for the given retry attempt, per the
// retry policy: now + 60*2^retries seconds.
func NextBackoff(now time.Time, retries int) time.Time {
	secs := 60 * (1 << uint(retries))
	return now.Add(time.Duration(secs) * time.Second)
}

// LLMProvider enumerates the supported chat-completion backends.
type LLMProvider string

const (
	LLMPlatform     LLMProvider = "platform"
	LLMOpenAI       LLMProvider = "openai"
	LLMAzureOpenAI  LLMProvider = "azure-openai"
	LLMGemini       LLMProvider = "gemini"
)

// HealthStatus reflects the last health check outcome for a configured
// integration or LLM backend.
type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthHealthy HealthStatus = "healthy"
	HealthFailed  HealthStatus = "failed"
)

// LLMConfig is the per-workspace chat-completion configuration. Credentials
// are decrypted by the caller (Identity/Billing's encrypted-blob owner);
// this type carries already-decrypted values for the Gateway's use.
type LLMConfig struct {
	Workspace   string
	Provider    LLMProvider
	Model       string
	APIKey      string
	BaseURL     string // used by azure-openai
	APIVersion  string // used by azure-openai
	Health      HealthStatus
}

// IntegrationProvider names a provider adapter's backing system, matching
// the providers the Provider Registry exposes to the agent loop.
type IntegrationProvider string

const (
	IntegrationCloudWatch IntegrationProvider = "cloudwatch"
	IntegrationPrometheus IntegrationProvider = "prometheus"
	IntegrationGitHub     IntegrationProvider = "github"
)

// IntegrationCredential is the per-workspace, per-provider connection config
// a Provider Registry needs to open an Adapter: endpoint/region plus
// already-decrypted secret material. Owned and written by the out-of-scope
// Identity/Billing CRUD layer (same split as LLMConfig above); this
// repository only reads it.
type IntegrationCredential struct {
	Workspace string
	Provider  IntegrationProvider

	// Region is the AWS region for cloudwatch credentials.
	Region string
	// BaseURL is the Prometheus query-API base URL, or a GitHub Enterprise
	// base URL; empty means the provider's public default.
	BaseURL string
	// SecretValue is the already-decrypted bearer credential: an AWS
	// session/IAM secret reference, a Prometheus bearer token, or a GitHub
	// personal/installation access token, depending on Provider.
	SecretValue string

	Health HealthStatus
}

// QuotaCounter tracks admissions for (workspace, resource, window_key).
type QuotaCounter struct {
	Workspace string
	Resource  string
	WindowKey string // UTC day stamp, e.g. "2026-07-31"
	Count     int64
}

// SecurityEvent is an append-only record of a non-allow Prompt Guard verdict.
type SecurityEvent struct {
	ID             string
	Workspace      string
	SessionID      string
	TurnID         string
	Verdict        string // "block" | "degraded"
	Reason         string
	MessagePrefix  string // truncated to 300 chars
	CreatedAt      time.Time
}

// TruncateMessagePrefix clamps s to the 300-char SecurityEvent bound.
func TruncateMessagePrefix(s string) string {
	const max = 300
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Sentinel errors shared by all Store implementations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already deleted")
	ErrTurnNotFound    = errors.New("turn not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrFeedbackExists  = errors.New("feedback already submitted for this turn and user")

	ErrIntegrationNotConfigured = errors.New("integration not configured for workspace")
)
