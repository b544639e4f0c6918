package worker

import (
	"context"
	"time"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
)

// Reconciler periodically resets jobs stuck in running past
// max_turn_duration back to queued with retries incremented, per spec.md §8
// scenario 5 ("worker crash mid-turn"). It is a supplement beyond the
// distilled spec (SPEC_FULL.md §9): without it, a crashed worker's job would
// never be redelivered once the queue's visibility timeout has also lapsed
// and nothing repairs the Job Store's own bookkeeping.
type Reconciler struct {
	Jobs  domain.JobStore
	Turns domain.TurnStore
	Queue interface {
		Send(ctx context.Context, jobID string, delay time.Duration) error
	}
	MaxTurnDuration   time.Duration
	Interval          time.Duration
	DefaultMaxRetries int
	Logger            telemetry.Logger
}

// Run ticks every Interval until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-r.MaxTurnDuration)
	stale, err := r.Jobs.ListStaleRunning(ctx, cutoff)
	if err != nil {
		r.Logger.Error(ctx, "reconciler: list stale running jobs failed", err)
		return
	}
	for _, job := range stale {
		maxRetries := job.MaxRetries
		if maxRetries == 0 {
			maxRetries = r.DefaultMaxRetries
		}
		now := time.Now()
		if job.Retries >= maxRetries {
			if _, err := r.Jobs.Fail(ctx, job.ID, now, "worker did not finish within max_turn_duration"); err != nil {
				r.Logger.Error(ctx, "reconciler: fail stale job failed", err, telemetry.Str("job_id", job.ID))
			}
			if _, err := r.Turns.TransitionTurn(ctx, job.Workspace, job.TurnID, domain.TurnFailed, ""); err != nil {
				r.Logger.Error(ctx, "reconciler: persist failed turn failed", err, telemetry.Str("turn_id", job.TurnID))
			}
			continue
		}
		backoff := domain.NextBackoff(now, job.Retries)
		if _, err := r.Jobs.Requeue(ctx, job.ID, now, backoff); err != nil {
			r.Logger.Error(ctx, "reconciler: requeue stale job failed", err, telemetry.Str("job_id", job.ID))
			continue
		}
		if err := r.Queue.Send(ctx, job.ID, time.Until(backoff)); err != nil {
			r.Logger.Error(ctx, "reconciler: re-enqueue stale job failed", err, telemetry.Str("job_id", job.ID))
		}
	}
}
