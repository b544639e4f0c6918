// Package mongo hosts the MongoDB-backed implementation of the domain.*Store
// interfaces: one collection per aggregate (session, turn, turnstep, job,
// quota counter, security event), indexed per the ownership rules of
// SPEC_FULL.md §4.
package mongo

import (
	"context"
	"errors"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"
)

const (
	defaultOpTimeout        = 5 * time.Second
	collSessions            = "rca_sessions"
	collTurns               = "rca_turns"
	collTurnSteps           = "rca_turn_steps"
	collJobs                = "rca_jobs"
	collQuotaCounters       = "rca_quota_counters"
	collSecurityEvents      = "rca_security_events"
	collFeedback            = "rca_turn_feedback"
	collComments            = "rca_turn_comments"
	collLLMConfigs          = "rca_llm_configs"
	collIntegrationCreds    = "rca_integration_credentials"
	storeClientName         = "rca-store-mongo"
)

// Store bundles the collections backing every domain.*Store interface,
// sharing one Mongo client and operation timeout.
type Store struct {
	mongo        *mongodriver.Client
	timeout      time.Duration
	sessions     collection
	turns        collection
	turnSteps    collection
	jobs         collection
	quotaCounters collection
	securityEvents collection
	feedback     collection
	comments     collection
	llmConfigs   collection
	integrationCredentials collection
}

// Options configures a Store.
type Options struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// New returns a Store backed by MongoDB, ensuring indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	db := opts.Client.Database(opts.Database)
	s := &Store{
		mongo:          opts.Client,
		timeout:        timeout,
		sessions:       mongoCollection{coll: db.Collection(collSessions)},
		turns:          mongoCollection{coll: db.Collection(collTurns)},
		turnSteps:      mongoCollection{coll: db.Collection(collTurnSteps)},
		jobs:           mongoCollection{coll: db.Collection(collJobs)},
		quotaCounters:  mongoCollection{coll: db.Collection(collQuotaCounters)},
		securityEvents: mongoCollection{coll: db.Collection(collSecurityEvents)},
		feedback:       mongoCollection{coll: db.Collection(collFeedback)},
		comments:       mongoCollection{coll: db.Collection(collComments)},
		llmConfigs:     mongoCollection{coll: db.Collection(collLLMConfigs)},
		integrationCredentials: mongoCollection{coll: db.Collection(collIntegrationCreds)},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string { return storeClientName }

// Ping implements health.Pinger for the /healthz db check.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

var _ health.Pinger = (*Store)(nil)

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	idx := []struct {
		coll  collection
		model mongodriver.IndexModel
	}{
		{s.sessions, mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.sessions, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "workspace", Value: 1}, {Key: "origin", Value: 1}, {Key: "external_thread_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"external_thread_key": bson.M{"$exists": true, "$ne": ""}}),
		}},
		{s.turns, mongodriver.IndexModel{Keys: bson.D{{Key: "turn_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.turns, mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}}},
		{s.turnSteps, mongodriver.IndexModel{Keys: bson.D{{Key: "turn_id", Value: 1}, {Key: "sequence", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.jobs, mongodriver.IndexModel{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.jobs, mongodriver.IndexModel{Keys: bson.D{{Key: "turn_id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.jobs, mongodriver.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "started_at", Value: 1}}}},
		{s.quotaCounters, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "workspace", Value: 1}, {Key: "resource", Value: 1}, {Key: "window_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.feedback, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "turn_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.comments, mongodriver.IndexModel{Keys: bson.D{{Key: "turn_id", Value: 1}, {Key: "created_at", Value: 1}}}},
		{s.llmConfigs, mongodriver.IndexModel{Keys: bson.D{{Key: "workspace", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.integrationCredentials, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "workspace", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, i := range idx {
		if _, err := i.coll.Indexes().CreateOne(ctx, i.model); err != nil {
			return err
		}
	}
	return nil
}

// collection is the minimal surface Store depends on, kept as an interface
// so unit tests can substitute in-memory fakes without a live Mongo.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOptions]) (*mongodriver.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult
	DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	CountDocuments(ctx context.Context, filter any) (int64, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
	Err() error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

type mongoCollection struct{ coll *mongodriver.Collection }

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) FindOneAndUpdate(ctx context.Context, filter, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOneAndUpdate(ctx, filter, update, opts...)}
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter)
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteMany(ctx, filter)
}

func (c mongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct{ res *mongodriver.SingleResult }

func (r mongoSingleResult) Decode(val any) error { return r.res.Decode(val) }
func (r mongoSingleResult) Err() error           { return r.res.Err() }

type mongoCursor struct{ cur *mongodriver.Cursor }

func (c mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
func (c mongoCursor) Decode(val any) error            { return c.cur.Decode(val) }
func (c mongoCursor) Err() error                      { return c.cur.Err() }
func (c mongoCursor) Next(ctx context.Context) bool    { return c.cur.Next(ctx) }

type mongoIndexView struct{ view mongodriver.IndexView }

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
