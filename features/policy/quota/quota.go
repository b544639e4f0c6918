// Package quota implements policy.QuotaGate over domain.QuotaStore's atomic
// check-and-increment counter, grounded on the same upsert/conditional-
// update idiom features/session/mongo/clients/mongo/client.go uses for its
// own admission bookkeeping (see features/store/mongo for the concrete
// Mongo-backed QuotaStore this gate sits on top of).
package quota

import (
	"context"
	"time"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

// resourceRCARequest is the only admission-time resource spec.md §4.1 names.
const resourceRCARequest = "rca_request"

// LimitFunc resolves a workspace's daily RCA admission limit, sourced from
// the outbound Billing/Plan lookup (spec.md §4.10): limits(workspace) →
// {daily_rca_limit, ...}.
type LimitFunc func(workspace string) int64

// Gate implements policy.QuotaGate against a daily, UTC-day-keyed counter
// (spec.md §4.8: "Window_key is a day stamp (UTC)").
type Gate struct {
	store domain.QuotaStore
	limit LimitFunc
}

// New builds a Gate. limit must not be nil.
func New(store domain.QuotaStore, limit LimitFunc) *Gate {
	return &Gate{store: store, limit: limit}
}

// Admit implements policy.QuotaGate.Admit.
func (g *Gate) Admit(ctx context.Context, workspace, resource string) (bool, int64, error) {
	limit := g.limit(workspace)
	windowKey := time.Now().UTC().Format("2006-01-02")
	count, ok, err := g.store.CheckAndIncrement(ctx, workspace, resource, windowKey, limit)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}
	return true, limit - count, nil
}

// Limit resolves the workspace's current daily limit, exposed so the Chat
// API can populate QuotaExceededDetail.Limit without re-deriving it.
func (g *Gate) Limit(workspace string) int64 {
	return g.limit(workspace)
}

// ResetAt returns the next UTC-midnight rollover, when the daily window_key
// advances and a blocked workspace is admitted again.
func ResetAt() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Resource returns the admission resource name used by the Chat API.
func Resource() string { return resourceRCARequest }
