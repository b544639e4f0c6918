package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CheckAndIncrement implements domain.QuotaStore.CheckAndIncrement with a
// single atomic findOneAndUpdate: the $inc always applies, and the
// post-increment count is compared against limit so two concurrent
// admissions can never both succeed past it (spec.md §4.1's quota-gate
// step), then rolled back with a compensating decrement when over limit.
func (s *Store) CheckAndIncrement(ctx context.Context, workspace, resource, windowKey string, limit int64) (int64, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"workspace": workspace, "resource": resource, "window_key": windowKey}
	res := s.quotaCounters.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$inc": bson.M{"count": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc quotaDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return 0, false, errors.New("quota counter upsert returned no document")
		}
		return 0, false, err
	}
	if doc.Count > limit {
		if _, err := s.quotaCounters.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"count": -1}}); err != nil {
			return doc.Count, false, err
		}
		return limit, false, nil
	}
	return doc.Count, true, nil
}
