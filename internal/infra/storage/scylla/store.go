package scylla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"rentspot/internal/domain/chat"
)

var (
	ErrSessionMissing = errors.New("scylla session not initialized")
	ErrSeenContended  = errors.New("scylla: mark seen contended")
)

// maxSeenAttempts bounds retries when a concurrent reader marks the same rows.
const maxSeenAttempts = 3

// MessageStore is the Scylla-backed chat.Store.
type MessageStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewMessageStore(session *gocql.Session, logger *slog.Logger) *MessageStore {
	return &MessageStore{session: session, logger: logger}
}

func (s *MessageStore) Insert(ctx context.Context, msg chat.Message) error {
	if s.session == nil {
		return ErrSessionMissing
	}
	key := msg.Key()
	row := toRow(msg)
	if err := s.session.
		Query(`INSERT INTO messages (ad_id, pair_key, created_at, message_id, sender_id, receiver_id, body, image, seen) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.AdID, row.PairKey, row.CreatedAt, row.ID, row.SenderID, row.ReceiverID, row.Body, row.Image, row.Seen).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return err
	}
	for _, userID := range []string{key.UserA, key.UserB} {
		if err := s.session.
			Query(`INSERT INTO conversations_by_user (user_id, ad_id, pair_key, last_message_at) VALUES (?, ?, ?, ?)`,
				userID, key.AdID, row.PairKey, row.CreatedAt).
			WithContext(ctx).
			Exec(); err != nil {
			// the index is rebuilt by the next message in the thread
			if s.logger != nil {
				s.logger.Warn("failed to index conversation", "error", err, "user_id", userID, "ad_id", key.AdID)
			}
		}
	}
	return nil
}

// MarkSeen flips unseen rows from sender to receiver in one conditional
// logged batch. The batch touches a single partition, so it applies atomically.
func (s *MessageStore) MarkSeen(ctx context.Context, adID, senderID, receiverID string) (int64, error) {
	if s.session == nil {
		return 0, ErrSessionMissing
	}
	key := chat.NewConversationKey(adID, senderID, receiverID)
	scan := func() ([]messageRow, error) {
		rows, err := s.scan(ctx, key)
		if err != nil {
			return nil, err
		}
		return unseenFrom(rows, senderID, receiverID), nil
	}
	return markSeenCAS(maxSeenAttempts, scan, func(pending []messageRow) (bool, error) {
		batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
		for _, r := range pending {
			batch.Query(`UPDATE messages SET seen = true WHERE ad_id = ? AND pair_key = ? AND created_at = ? AND message_id = ? IF seen = false`,
				r.AdID, r.PairKey, r.CreatedAt, r.ID)
		}
		applied, iter, err := s.session.MapExecuteBatchCAS(batch, map[string]interface{}{})
		if iter != nil {
			_ = iter.Close()
		}
		return applied, err
	})
}

// markSeenCAS rescans and retries while a concurrent reader wins the batch.
// A lost batch changes nothing, so the next scan sees the other reader's rows
// as already seen.
func markSeenCAS(attempts int, scan func() ([]messageRow, error), apply func([]messageRow) (bool, error)) (int64, error) {
	for range attempts {
		pending, err := scan()
		if err != nil {
			return 0, err
		}
		if len(pending) == 0 {
			return 0, nil
		}
		applied, err := apply(pending)
		if err != nil {
			return 0, err
		}
		if applied {
			return int64(len(pending)), nil
		}
	}
	return 0, ErrSeenContended
}

func (s *MessageStore) Conversation(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	if s.session == nil {
		return nil, ErrSessionMissing
	}
	rows, err := s.scan(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *MessageStore) LatestPerConversation(ctx context.Context, userID string) ([]chat.Message, error) {
	if s.session == nil {
		return nil, ErrSessionMissing
	}
	iter := s.session.
		Query(`SELECT ad_id, pair_key FROM conversations_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	type thread struct{ adID, pairKey string }
	var (
		threads []thread
		adID    string
		pairKey string
	)
	for iter.Scan(&adID, &pairKey) {
		threads = append(threads, thread{adID: adID, pairKey: pairKey})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	out := make([]chat.Message, 0, len(threads))
	for _, t := range threads {
		var r messageRow
		err := s.session.
			Query(`SELECT ad_id, pair_key, created_at, message_id, sender_id, receiver_id, body, image, seen FROM messages WHERE ad_id = ? AND pair_key = ? ORDER BY created_at DESC, message_id DESC LIMIT 1`,
				t.adID, t.pairKey).
			WithContext(ctx).
			Consistency(gocql.One).
			Scan(&r.AdID, &r.PairKey, &r.CreatedAt, &r.ID, &r.SenderID, &r.ReceiverID, &r.Body, &r.Image, &r.Seen)
		if errors.Is(err, gocql.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r.toDomain())
	}
	chat.SortNewestFirst(out)
	return out, nil
}

func (s *MessageStore) scan(ctx context.Context, key chat.ConversationKey) ([]messageRow, error) {
	iter := s.session.
		Query(`SELECT ad_id, pair_key, created_at, message_id, sender_id, receiver_id, body, image, seen FROM messages WHERE ad_id = ? AND pair_key = ?`,
			key.AdID, key.PairKey()).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Iter()
	var (
		rows []messageRow
		r    messageRow
	)
	for iter.Scan(&r.AdID, &r.PairKey, &r.CreatedAt, &r.ID, &r.SenderID, &r.ReceiverID, &r.Body, &r.Image, &r.Seen) {
		rows = append(rows, r)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

type messageRow struct {
	AdID       string
	PairKey    string
	CreatedAt  time.Time
	ID         string
	SenderID   string
	ReceiverID string
	Body       string
	Image      string
	Seen       bool
}

func toRow(m chat.Message) messageRow {
	return messageRow{
		AdID:       m.AdID,
		PairKey:    m.Key().PairKey(),
		CreatedAt:  m.CreatedAt.UTC().Truncate(time.Millisecond),
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Body,
		Image:      m.Image,
		Seen:       m.Seen,
	}
}

func (r messageRow) toDomain() chat.Message {
	return chat.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		AdID:       r.AdID,
		Body:       r.Body,
		Image:      r.Image,
		CreatedAt:  r.CreatedAt.UTC(),
		Seen:       r.Seen,
	}
}

func unseenFrom(rows []messageRow, senderID, receiverID string) []messageRow {
	var out []messageRow
	for _, r := range rows {
		if !r.Seen && r.SenderID == senderID && r.ReceiverID == receiverID {
			out = append(out, r)
		}
	}
	return out
}

var _ chat.Store = (*MessageStore)(nil)
