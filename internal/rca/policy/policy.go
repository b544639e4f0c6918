// Package policy defines the admission-time guards spec.md §4.7/§4.8
// describes: the Prompt Guard (injection/jailbreak classifier) and the
// Quota Gate (per-workspace rate limiting), both evaluated before a Turn is
// ever queued.
package policy

import "context"

// Verdict is the Prompt Guard's classification of one inbound message.
type Verdict string

const (
	VerdictAllow    Verdict = "allow"
	VerdictDegraded Verdict = "degraded" // admitted, but flagged for review
	VerdictBlock    Verdict = "block"
)

// GuardDecision is the result of one Prompt Guard evaluation.
type GuardDecision struct {
	Verdict Verdict
	Reason  string // populated for Degraded/Block
}

// PromptGuard classifies an inbound user message for prompt-injection or
// policy-violating content before the Turn is admitted. Implementations may
// fail open or fail closed on classifier error; see Options.FailClosed in
// features/policy/guard.
type PromptGuard interface {
	Classify(ctx context.Context, workspace, message string) (GuardDecision, error)
}

// QuotaGate enforces the per-workspace admission rate limit of spec.md §4.8.
// Admit is expected to be backed by an atomic check-and-increment so
// concurrent admissions cannot race past the limit.
type QuotaGate interface {
	// Admit attempts to consume one unit of the named resource's quota for
	// workspace in the current window. ok=false means the limit was already
	// reached and the caller must reject the request with "quota_exceeded".
	Admit(ctx context.Context, workspace, resource string) (ok bool, remaining int64, err error)
}
