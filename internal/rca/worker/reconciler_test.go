package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

type staleJobStore struct {
	fakeJobStore
	stale         []domain.Job
	failedIDs     []string
	requeuedIDs   []string
	listErr       error
}

func (s *staleJobStore) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.stale, nil
}

func (s *staleJobStore) Fail(ctx context.Context, id string, now time.Time, errMsg string) (domain.Job, error) {
	s.failedIDs = append(s.failedIDs, id)
	return domain.Job{ID: id}, nil
}

func (s *staleJobStore) Requeue(ctx context.Context, id string, now time.Time, backoffUntil time.Time) (domain.Job, error) {
	s.requeuedIDs = append(s.requeuedIDs, id)
	return domain.Job{ID: id}, nil
}

type fakeSendQueue struct{ sent []string }

func (q *fakeSendQueue) Send(ctx context.Context, jobID string, delay time.Duration) error {
	q.sent = append(q.sent, jobID)
	return nil
}

func TestReconciler_Tick_RequeuesStaleJobUnderRetryBudget(t *testing.T) {
	store := &staleJobStore{stale: []domain.Job{{ID: "job-1", Retries: 0, MaxRetries: 3}}}
	sendQueue := &fakeSendQueue{}
	turns := &fakeTurnStore{}
	r := &Reconciler{Jobs: store, Turns: turns, Queue: sendQueue, MaxTurnDuration: time.Minute, DefaultMaxRetries: 3, Logger: noopLogger{}}

	r.tick(context.Background())

	require.Equal(t, []string{"job-1"}, store.requeuedIDs)
	require.Equal(t, []string{"job-1"}, sendQueue.sent)
	require.Empty(t, store.failedIDs)
	require.Empty(t, turns.transitions)
}

func TestReconciler_Tick_FailsStaleJobOverRetryBudget(t *testing.T) {
	store := &staleJobStore{stale: []domain.Job{{ID: "job-2", Workspace: "ws-1", TurnID: "turn-2", Retries: 3, MaxRetries: 3}}}
	sendQueue := &fakeSendQueue{}
	turns := &fakeTurnStore{}
	r := &Reconciler{Jobs: store, Turns: turns, Queue: sendQueue, MaxTurnDuration: time.Minute, DefaultMaxRetries: 3, Logger: noopLogger{}}

	r.tick(context.Background())

	require.Equal(t, []string{"job-2"}, store.failedIDs)
	require.Empty(t, store.requeuedIDs)
	require.Equal(t, []domain.TurnStatus{domain.TurnFailed}, turns.transitions)
}

func TestReconciler_Tick_UsesDefaultMaxRetriesWhenJobHasNone(t *testing.T) {
	store := &staleJobStore{stale: []domain.Job{{ID: "job-3", Retries: 2, MaxRetries: 0}}}
	sendQueue := &fakeSendQueue{}
	turns := &fakeTurnStore{}
	r := &Reconciler{Jobs: store, Turns: turns, Queue: sendQueue, MaxTurnDuration: time.Minute, DefaultMaxRetries: 5, Logger: noopLogger{}}

	r.tick(context.Background())

	require.Equal(t, []string{"job-3"}, store.requeuedIDs)
}

func TestReconciler_Tick_ListErrorIsLoggedAndSkipped(t *testing.T) {
	store := &staleJobStore{listErr: context.DeadlineExceeded}
	sendQueue := &fakeSendQueue{}
	turns := &fakeTurnStore{}
	r := &Reconciler{Jobs: store, Turns: turns, Queue: sendQueue, MaxTurnDuration: time.Minute, DefaultMaxRetries: 3, Logger: noopLogger{}}

	r.tick(context.Background())

	require.Empty(t, store.failedIDs)
	require.Empty(t, store.requeuedIDs)
}
