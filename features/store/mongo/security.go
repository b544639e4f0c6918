package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

// RecordEvent implements domain.SecurityStore.RecordEvent: an append-only
// insert guarded by $setOnInsert on the event's own id, so a retried
// publish from the admission path never duplicates the record.
func (s *Store) RecordEvent(ctx context.Context, e domain.SecurityEvent) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := securityEventDoc{
		EventID: e.ID, Workspace: e.Workspace, SessionID: e.SessionID, TurnID: e.TurnID,
		Verdict: e.Verdict, Reason: e.Reason, MessagePrefix: e.MessagePrefix, CreatedAt: e.CreatedAt,
	}
	_, err := s.securityEvents.UpdateOne(ctx,
		bson.M{"event_id": e.ID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}
