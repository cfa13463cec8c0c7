package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "rentspot/internal/app/outbox"
)

type state string

const (
	stateNew     state = "NEW"
	stateClaimed state = "CLAIMED"
	stateSent    state = "SENT"
	stateFailed  state = "FAILED"
)

const (
	defaultLease     = 30 * time.Second
	defaultRetention = 72 * time.Hour
)

// EventDocument is one row of app_outbox as the worker sees it.
type EventDocument struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers,omitempty"`
	State       state             `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by,omitempty"`
	ClaimedAt   *time.Time        `bson:"claimed_at,omitempty"`
	SentAt      *time.Time        `bson:"sent_at,omitempty"`
	LastError   string            `bson:"last_error,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
}

// Store keeps chat events in app_outbox until the worker has published them.
// A claim is a lease: a worker that dies mid-publish loses its records to the
// next Claim once Lease has passed. Sent records expire after Retention.
type Store struct {
	col       *mongo.Collection
	now       func() time.Time
	Lease     time.Duration
	Retention time.Duration
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		col:       db.Collection("app_outbox"),
		now:       time.Now,
		Lease:     defaultLease,
		Retention: defaultRetention,
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	retention := s.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "sent_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		},
	})
	return err
}

func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := s.now().UTC()
	_, err := s.col.InsertOne(ctx, EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	})
	return err
}

// Flush is a no-op: records are durable as soon as Add returns.
func (s *Store) Flush(context.Context) error { return nil }

// Claim leases the oldest due record to workerID. It returns nil when nothing
// is due.
func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := s.now().UTC()
	lease := s.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"state": bson.M{"$in": bson.A{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}},
		bson.M{"state": stateClaimed, "claimed_at": bson.M{"$lt": now.Add(-lease)}},
	}}
	update := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	var doc EventDocument
	switch err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &doc, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.transition(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": s.now().UTC()}})
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.transition(ctx, id, bson.M{
		"$set": bson.M{"state": stateFailed, "next_attempt_at": next, "last_error": errMsg},
		"$inc": bson.M{"attempts": 1},
	})
}

// transition ignores records that are no longer claimed, such as ones a
// second worker already finished after the lease expired.
func (s *Store) transition(ctx context.Context, id string, update bson.M) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id, "state": stateClaimed}, update)
	return err
}

var _ appoutbox.Outbox = (*Store)(nil)
