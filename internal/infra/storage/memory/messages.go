package memory

import (
	"context"
	"sync"

	"rentspot/internal/domain/chat"
)

// MessageStore keeps chat messages in insertion order.
type MessageStore struct {
	mu   sync.RWMutex
	msgs []chat.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Insert(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *MessageStore) MarkSeen(ctx context.Context, adID, senderID, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.AdID == adID && m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) Conversation(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, 0)
	for _, m := range s.msgs {
		if m.Key() == key {
			out = append(out, m)
		}
	}
	chat.SortChronologically(out)
	return out, nil
}

func (s *MessageStore) LatestPerConversation(ctx context.Context, userID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.Latest(userID, s.msgs), nil
}

var _ chat.Store = (*MessageStore)(nil)
