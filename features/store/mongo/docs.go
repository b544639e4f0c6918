package mongo

import "time"

// bson documents mirror the domain.* types but keep Mongo field names
// separate from the storage-agnostic domain package (features/session/mongo
// in the teacher keeps the same separation between runDocument/sessionDocument
// and their agent/session counterparts).

type sessionDoc struct {
	SessionID         string    `bson:"session_id"`
	Workspace         string    `bson:"workspace"`
	Origin            string    `bson:"origin"`
	UserID            string    `bson:"user_id"`
	ExternalThreadKey string    `bson:"external_thread_key,omitempty"`
	Title             string    `bson:"title,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

type turnDoc struct {
	TurnID        string    `bson:"turn_id"`
	Workspace     string    `bson:"workspace"`
	SessionID     string    `bson:"session_id"`
	UserMessage   string    `bson:"user_message"`
	FinalResponse string    `bson:"final_response,omitempty"`
	Status        string    `bson:"status"`
	JobID         string    `bson:"job_id"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type turnStepDoc struct {
	StepID    string    `bson:"step_id"`
	TurnID    string    `bson:"turn_id"`
	Type      string    `bson:"type"`
	ToolName  string    `bson:"tool_name,omitempty"`
	Content   string    `bson:"content"`
	Status    string    `bson:"status"`
	Sequence  uint32    `bson:"sequence"`
	CreatedAt time.Time `bson:"created_at"`
}

type jobDoc struct {
	JobID            string            `bson:"job_id"`
	Workspace        string            `bson:"workspace"`
	TurnID           string            `bson:"turn_id"`
	Status           string            `bson:"status"`
	Retries          int               `bson:"retries"`
	MaxRetries       int               `bson:"max_retries"`
	BackoffUntil     *time.Time        `bson:"backoff_until,omitempty"`
	Priority         int32             `bson:"priority"`
	Query            string            `bson:"query"`
	UserID           string            `bson:"user_id"`
	IntegrationHints map[string]string `bson:"integration_hints,omitempty"`
	StartedAt        *time.Time        `bson:"started_at,omitempty"`
	FinishedAt       *time.Time        `bson:"finished_at,omitempty"`
	Error            string            `bson:"error,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at"`
}

type quotaDoc struct {
	Workspace string `bson:"workspace"`
	Resource  string `bson:"resource"`
	WindowKey string `bson:"window_key"`
	Count     int64  `bson:"count"`
}

type securityEventDoc struct {
	EventID       string    `bson:"event_id"`
	Workspace     string    `bson:"workspace"`
	SessionID     string    `bson:"session_id,omitempty"`
	TurnID        string    `bson:"turn_id,omitempty"`
	Verdict       string    `bson:"verdict"`
	Reason        string    `bson:"reason,omitempty"`
	MessagePrefix string    `bson:"message_prefix,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

type feedbackDoc struct {
	TurnID    string    `bson:"turn_id"`
	UserID    string    `bson:"user_id"`
	Score     int       `bson:"score"`
	Comment   string    `bson:"comment,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type commentDoc struct {
	TurnID    string    `bson:"turn_id"`
	UserID    string    `bson:"user_id"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
}

type llmConfigDoc struct {
	Workspace  string `bson:"workspace"`
	Provider   string `bson:"provider"`
	Model      string `bson:"model"`
	APIKey     string `bson:"api_key"`
	BaseURL    string `bson:"base_url,omitempty"`
	APIVersion string `bson:"api_version,omitempty"`
	Health     string `bson:"health"`
}

type integrationCredentialDoc struct {
	Workspace   string `bson:"workspace"`
	Provider    string `bson:"provider"`
	Region      string `bson:"region,omitempty"`
	BaseURL     string `bson:"base_url,omitempty"`
	SecretValue string `bson:"secret_value"`
	Health      string `bson:"health"`
}
