package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

// CreateJob implements domain.JobStore.CreateJob.
func (s *Store) CreateJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := fromJob(j)
	if _, err := s.jobs.UpdateOne(ctx,
		bson.M{"job_id": j.ID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// LoadJob implements domain.JobStore.LoadJob.
func (s *Store) LoadJob(ctx context.Context, id string) (domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc jobDoc
	err := s.jobs.FindOne(ctx, bson.M{"job_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return toJob(doc), nil
}

// ClaimQueued implements domain.JobStore.ClaimQueued: a single atomic
// updateOne filtered on status=queued guarantees only one worker wins the
// race for a given job (spec.md §4.2's concurrency note), mirroring the
// teacher's conditional-update idiom in features/run/mongo/store.go.
func (s *Store) ClaimQueued(ctx context.Context, id string, now time.Time) (domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.jobs.FindOneAndUpdate(ctx,
		bson.M{"job_id": id, "status": string(domain.JobQueued)},
		bson.M{"$set": bson.M{"status": string(domain.JobRunning), "started_at": now, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc jobDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, err
	}
	return toJob(doc), nil
}

// Complete implements domain.JobStore.Complete.
func (s *Store) Complete(ctx context.Context, id string, now time.Time) (domain.Job, error) {
	return s.setTerminal(ctx, id, domain.JobCompleted, now, "")
}

// Fail implements domain.JobStore.Fail.
func (s *Store) Fail(ctx context.Context, id string, now time.Time, errMsg string) (domain.Job, error) {
	return s.setTerminal(ctx, id, domain.JobFailed, now, errMsg)
}

func (s *Store) setTerminal(ctx context.Context, id string, status domain.JobStatus, now time.Time, errMsg string) (domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	set := bson.M{"status": string(status), "finished_at": now, "updated_at": now}
	if errMsg != "" {
		set["error"] = errMsg
	}
	res := s.jobs.FindOneAndUpdate(ctx,
		bson.M{"job_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc jobDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, err
	}
	return toJob(doc), nil
}

// Requeue implements domain.JobStore.Requeue.
func (s *Store) Requeue(ctx context.Context, id string, now time.Time, backoffUntil time.Time) (domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.jobs.FindOneAndUpdate(ctx,
		bson.M{"job_id": id},
		bson.M{
			"$set": bson.M{"status": string(domain.JobQueued), "backoff_until": backoffUntil, "updated_at": now},
			"$inc": bson.M{"retries": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc jobDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.Job{}, domain.ErrJobNotFound
		}
		return domain.Job{}, err
	}
	return toJob(doc), nil
}

// ListStaleRunning implements domain.JobStore.ListStaleRunning, for the
// stale-job reconciler (SPEC_FULL.md §9).
func (s *Store) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.jobs.Find(ctx, bson.M{
		"status":     string(domain.JobRunning),
		"started_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Job
	for cur.Next(ctx) {
		var doc jobDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toJob(doc))
	}
	return out, cur.Err()
}

func fromJob(j domain.Job) jobDoc {
	return jobDoc{
		JobID: j.ID, Workspace: j.Workspace, TurnID: j.TurnID, Status: string(j.Status),
		Retries: j.Retries, MaxRetries: j.MaxRetries, BackoffUntil: j.BackoffUntil, Priority: j.Priority,
		Query: j.RequestedContext.Query, UserID: j.RequestedContext.UserID, IntegrationHints: j.RequestedContext.IntegrationHints,
		StartedAt: j.StartedAt, FinishedAt: j.FinishedAt, Error: j.Error, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt,
	}
}

func toJob(d jobDoc) domain.Job {
	return domain.Job{
		ID: d.JobID, Workspace: d.Workspace, TurnID: d.TurnID, Status: domain.JobStatus(d.Status),
		Retries: d.Retries, MaxRetries: d.MaxRetries, BackoffUntil: d.BackoffUntil, Priority: d.Priority,
		RequestedContext: domain.RequestedContext{Query: d.Query, UserID: d.UserID, IntegrationHints: d.IntegrationHints},
		StartedAt:        d.StartedAt, FinishedAt: d.FinishedAt, Error: d.Error, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}
