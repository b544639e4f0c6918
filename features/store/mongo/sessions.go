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

// CreateSession implements domain.SessionStore.CreateSession. For
// chat-platform origin with a non-empty ExternalThreadKey it performs the
// teacher's $setOnInsert-only idempotent upsert so concurrent admissions for
// the same external thread converge on one session, then loads the
// canonical document back (features/session/mongo/clients/mongo/client.go's
// CreateSession pattern).
func (s *Store) CreateSession(ctx context.Context, sess domain.Session) (domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if sess.Origin == domain.OriginChatPlatform && sess.ExternalThreadKey != "" {
		filter := bson.M{
			"workspace":           sess.Workspace,
			"origin":              string(sess.Origin),
			"external_thread_key": sess.ExternalThreadKey,
		}
		update := bson.M{"$setOnInsert": sessionDoc{
			SessionID: sess.ID, Workspace: sess.Workspace, Origin: string(sess.Origin),
			UserID: sess.UserID, ExternalThreadKey: sess.ExternalThreadKey,
			CreatedAt: sess.CreatedAt, UpdatedAt: sess.UpdatedAt,
		}}
		if _, err := s.sessions.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
			return domain.Session{}, err
		}
		var doc sessionDoc
		if err := s.sessions.FindOne(ctx, filter).Decode(&doc); err != nil {
			return domain.Session{}, err
		}
		return toSession(doc), nil
	}

	doc := sessionDoc{
		SessionID: sess.ID, Workspace: sess.Workspace, Origin: string(sess.Origin),
		UserID: sess.UserID, Title: sess.Title, CreatedAt: sess.CreatedAt, UpdatedAt: sess.UpdatedAt,
	}
	if _, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": sess.ID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// LoadSession implements domain.SessionStore.LoadSession.
func (s *Store) LoadSession(ctx context.Context, workspace, id string) (domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc sessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"session_id": id, "workspace": workspace}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return toSession(doc), nil
}

// FindByExternalThread implements domain.SessionStore.FindByExternalThread.
func (s *Store) FindByExternalThread(ctx context.Context, workspace string, origin domain.SessionOrigin, externalThreadKey string) (domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc sessionDoc
	err := s.sessions.FindOne(ctx, bson.M{
		"workspace": workspace, "origin": string(origin), "external_thread_key": externalThreadKey,
	}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return toSession(doc), nil
}

// UpdateTitle implements domain.SessionStore.UpdateTitle.
func (s *Store) UpdateTitle(ctx context.Context, workspace, id, title string) (domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.sessions.FindOneAndUpdate(ctx,
		bson.M{"session_id": id, "workspace": workspace},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc sessionDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return toSession(doc), nil
}

// DeleteSession implements domain.SessionStore.DeleteSession, cascading to
// the session's turns and turn steps.
func (s *Store) DeleteSession(ctx context.Context, workspace, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.turns.Find(ctx, bson.M{"session_id": id, "workspace": workspace})
	if err != nil {
		return err
	}
	var turnIDs []string
	for cur.Next(ctx) {
		var doc turnDoc
		if err := cur.Decode(&doc); err != nil {
			_ = cur.Close(ctx)
			return err
		}
		turnIDs = append(turnIDs, doc.TurnID)
	}
	_ = cur.Close(ctx)
	if err := cur.Err(); err != nil {
		return err
	}

	if len(turnIDs) > 0 {
		if _, err := s.turnSteps.DeleteMany(ctx, bson.M{"turn_id": bson.M{"$in": turnIDs}}); err != nil {
			return err
		}
	}
	if _, err := s.turns.DeleteMany(ctx, bson.M{"session_id": id, "workspace": workspace}); err != nil {
		return err
	}
	_, err = s.sessions.DeleteOne(ctx, bson.M{"session_id": id, "workspace": workspace})
	return err
}

// ListSessions implements domain.SessionStore.ListSessions, newest first.
func (s *Store) ListSessions(ctx context.Context, workspace string, limit, offset int) ([]domain.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)).SetSkip(int64(offset))
	cur, err := s.sessions.Find(ctx, bson.M{"workspace": workspace}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Session
	for cur.Next(ctx) {
		var doc sessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toSession(doc))
	}
	return out, cur.Err()
}

func toSession(d sessionDoc) domain.Session {
	return domain.Session{
		ID: d.SessionID, Workspace: d.Workspace, Origin: domain.SessionOrigin(d.Origin),
		UserID: d.UserID, ExternalThreadKey: d.ExternalThreadKey, Title: d.Title,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}
