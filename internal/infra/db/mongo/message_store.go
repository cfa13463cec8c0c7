package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentspot/internal/domain/chat"
)

// MessageStore keeps chat messages in chat_messages. Every document carries
// the sorted participant pair so a conversation is one indexed lookup.
type MessageStore struct {
	col *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{col: db.Collection("chat_messages")}
}

func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ad_id", Value: 1}, {Key: "pair_key", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "ad_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "seen", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *MessageStore) Insert(ctx context.Context, msg chat.Message) error {
	_, err := s.col.InsertOne(ctx, newMessageDocument(msg))
	return err
}

func (s *MessageStore) MarkSeen(ctx context.Context, adID, senderID, receiverID string) (int64, error) {
	filter := bson.M{"ad_id": adID, "sender_id": senderID, "receiver_id": receiverID, "seen": false}
	res, err := s.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"seen": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MessageStore) Conversation(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	filter := bson.M{"ad_id": key.AdID, "pair_key": key.PairKey()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeMessages(ctx, cur)
}

func (s *MessageStore) LatestPerConversation(ctx context.Context, userID string) ([]chat.Message, error) {
	newestFirst := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}}}}},
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "ad_id", Value: "$ad_id"}, {Key: "pair_key", Value: "$pair_key"}}},
			{Key: "doc", Value: bson.M{"$first": "$$ROOT"}},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
		{{Key: "$sort", Value: newestFirst}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeMessages(ctx, cur)
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]chat.Message, error) {
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

type messageDocument struct {
	ID         string `bson:"_id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	AdID       string `bson:"ad_id"`
	PairKey    string `bson:"pair_key"`
	Body       string `bson:"message"`
	Image      string `bson:"image,omitempty"`
	CreatedAt  int64  `bson:"created_at"`
	Seen       bool   `bson:"seen"`
}

func newMessageDocument(m chat.Message) messageDocument {
	return messageDocument{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		AdID:       m.AdID,
		PairKey:    m.Key().PairKey(),
		Body:       m.Body,
		Image:      m.Image,
		CreatedAt:  m.CreatedAt.UnixMilli(),
		Seen:       m.Seen,
	}
}

func (d messageDocument) toDomain() chat.Message {
	return chat.Message{
		ID:         d.ID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		AdID:       d.AdID,
		Body:       d.Body,
		Image:      d.Image,
		CreatedAt:  timestampToTime(d.CreatedAt),
		Seen:       d.Seen,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ chat.Store = (*MessageStore)(nil)
