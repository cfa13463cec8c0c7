// Package inbox deduplicates consumed broker events.
package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultRetention = 72 * time.Hour

type entry struct {
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

// Store remembers which events a consumer group has applied. Entries expire
// after Retention, which must exceed the broker's redelivery window.
type Store struct {
	col       *mongo.Collection
	consumer  string
	now       func() time.Time
	Retention time.Duration
}

func NewStore(db *mongo.Database, consumer string) *Store {
	return &Store{
		col:       db.Collection("app_inbox"),
		consumer:  consumer,
		now:       time.Now,
		Retention: defaultRetention,
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	retention := s.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "received_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
	}
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{unique, ttl})
	return err
}

// Seen records eventID and reports whether it was recorded before. The unique
// index makes the check and the insert one step.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, entry{EventID: eventID, Consumer: s.consumer, ReceivedAt: s.now().UTC()})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}
