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

// CreateTurn implements domain.TurnStore.CreateTurn.
func (s *Store) CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := turnDoc{
		TurnID: t.ID, Workspace: t.Workspace, SessionID: t.SessionID,
		UserMessage: t.UserMessage, Status: string(t.Status), JobID: t.JobID,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
	if _, err := s.turns.UpdateOne(ctx,
		bson.M{"turn_id": t.ID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	); err != nil {
		return domain.Turn{}, err
	}
	return t, nil
}

// LoadTurn implements domain.TurnStore.LoadTurn.
func (s *Store) LoadTurn(ctx context.Context, workspace, id string) (domain.Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc turnDoc
	err := s.turns.FindOne(ctx, bson.M{"turn_id": id, "workspace": workspace}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.Turn{}, domain.ErrTurnNotFound
	}
	if err != nil {
		return domain.Turn{}, err
	}
	return toTurn(doc), nil
}

// allowedTurnTransitions enforces the pending->processing->{completed,failed}
// machine of spec.md §3; callers may also jump pending->{completed,failed}
// directly when a job fails before a worker ever claims it.
var allowedTurnTransitions = map[domain.TurnStatus][]domain.TurnStatus{
	domain.TurnPending:    {domain.TurnProcessing, domain.TurnCompleted, domain.TurnFailed},
	domain.TurnProcessing: {domain.TurnCompleted, domain.TurnFailed},
}

// TransitionTurn implements domain.TurnStore.TransitionTurn.
func (s *Store) TransitionTurn(ctx context.Context, workspace, id string, status domain.TurnStatus, finalResponse string) (domain.Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var current turnDoc
	if err := s.turns.FindOne(ctx, bson.M{"turn_id": id, "workspace": workspace}).Decode(&current); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.Turn{}, domain.ErrTurnNotFound
		}
		return domain.Turn{}, err
	}
	if !transitionAllowed(domain.TurnStatus(current.Status), status) {
		return domain.Turn{}, errors.New("invalid turn transition: " + current.Status + " -> " + string(status))
	}

	set := bson.M{"status": string(status), "updated_at": time.Now()}
	if status == domain.TurnCompleted || status == domain.TurnFailed {
		set["final_response"] = finalResponse
	}
	res := s.turns.FindOneAndUpdate(ctx,
		bson.M{"turn_id": id, "workspace": workspace},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc turnDoc
	if err := res.Decode(&doc); err != nil {
		return domain.Turn{}, err
	}
	return toTurn(doc), nil
}

func transitionAllowed(from, to domain.TurnStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range allowedTurnTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ListTurnsBySession implements domain.TurnStore.ListTurnsBySession.
func (s *Store) ListTurnsBySession(ctx context.Context, workspace, sessionID string) ([]domain.Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.turns.Find(ctx, bson.M{"workspace": workspace, "session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Turn
	for cur.Next(ctx) {
		var doc turnDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toTurn(doc))
	}
	return out, cur.Err()
}

// AppendStep implements domain.TurnStore.AppendStep's atomic, gap-free
// sequence assignment: a findOneAndUpdate against a per-turn counter
// document in the same collection (keyed "seq:{turn_id}"), mirroring the
// teacher's upsert-then-load idiom but using $inc in place of
// $setOnInsert since the counter must advance on every call.
func (s *Store) AppendStep(ctx context.Context, step domain.TurnStep) (domain.TurnStep, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.turnSteps.FindOneAndUpdate(ctx,
		bson.M{"turn_id": "seq:" + step.TurnID},
		bson.M{"$inc": bson.M{"sequence": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var counter turnStepDoc
	if err := res.Decode(&counter); err != nil {
		return domain.TurnStep{}, err
	}
	step.Sequence = counter.Sequence

	doc := turnStepDoc{
		StepID: step.ID, TurnID: step.TurnID, Type: string(step.Type), ToolName: step.ToolName,
		Content: step.Content, Status: string(step.Status), Sequence: step.Sequence, CreatedAt: step.CreatedAt,
	}
	if _, err := s.turnSteps.UpdateOne(ctx,
		bson.M{"turn_id": step.TurnID, "sequence": step.Sequence},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	); err != nil {
		return domain.TurnStep{}, err
	}
	return step, nil
}

// ListSteps implements domain.TurnStore.ListSteps, ordered by sequence. The
// synthetic per-turn counter document ("seq:{turn_id}") is excluded.
func (s *Store) ListSteps(ctx context.Context, turnID string) ([]domain.TurnStep, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	cur, err := s.turnSteps.Find(ctx, bson.M{"turn_id": turnID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.TurnStep
	for cur.Next(ctx) {
		var doc turnStepDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.TurnStep{
			ID: doc.StepID, TurnID: doc.TurnID, Type: domain.StepType(doc.Type), ToolName: doc.ToolName,
			Content: doc.Content, Status: domain.StepStatus(doc.Status), Sequence: doc.Sequence, CreatedAt: doc.CreatedAt,
		})
	}
	return out, cur.Err()
}

// SubmitFeedback implements domain.TurnStore.SubmitFeedback. The unique
// (turn_id, user_id) index makes the insert itself the race-free guard:
// if the $setOnInsert upsert matches an existing document instead of
// inserting a new one, feedback was already submitted.
func (s *Store) SubmitFeedback(ctx context.Context, workspace, turnID, userID string, score int, comment string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := feedbackDoc{TurnID: turnID, UserID: userID, Score: score, Comment: comment, CreatedAt: time.Now()}
	res, err := s.feedback.UpdateOne(ctx,
		bson.M{"turn_id": turnID, "user_id": userID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	if res.UpsertedCount == 0 {
		return domain.ErrFeedbackExists
	}
	return nil
}

// AddComment implements domain.TurnStore.AddComment.
func (s *Store) AddComment(ctx context.Context, workspace, turnID, userID, comment string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.comments.UpdateOne(ctx,
		bson.M{"turn_id": turnID, "user_id": userID, "comment": comment},
		bson.M{"$setOnInsert": commentDoc{TurnID: turnID, UserID: userID, Comment: comment, CreatedAt: time.Now()}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func toTurn(d turnDoc) domain.Turn {
	return domain.Turn{
		ID: d.TurnID, Workspace: d.Workspace, SessionID: d.SessionID, UserMessage: d.UserMessage,
		FinalResponse: d.FinalResponse, Status: domain.TurnStatus(d.Status), JobID: d.JobID,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}
