package chat

import (
	"time"

	"rentspot/internal/domain/shared/events"
)

const (
	EventMessageSent  = "chat.message_sent"
	EventMessagesSeen = "chat.messages_seen"
)

// MessageSent is the integration event other instances replay into their rooms.
type MessageSent struct {
	events.BaseEvent `json:"-"`
	MessageID        string    `json:"message_id"`
	SenderID         string    `json:"sender_id"`
	SenderName       string    `json:"sender_name"`
	ReceiverID       string    `json:"receiver_id"`
	AdID             string    `json:"ad_id"`
	Body             string    `json:"message"`
	Image            string    `json:"image,omitempty"`
	CreatedAt        time.Time `json:"timestamp"`
}

func NewMessageSent(msg Message, senderName string) MessageSent {
	return MessageSent{
		BaseEvent:  events.BaseEvent{Name: EventMessageSent, Aggregate: msg.Key().String(), Time: msg.CreatedAt},
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		ReceiverID: msg.ReceiverID,
		AdID:       msg.AdID,
		Body:       msg.Body,
		Image:      msg.Image,
		CreatedAt:  msg.CreatedAt,
	}
}

func (e MessageSent) Message() Message {
	return Message{
		ID:         e.MessageID,
		SenderID:   e.SenderID,
		ReceiverID: e.ReceiverID,
		AdID:       e.AdID,
		Body:       e.Body,
		Image:      e.Image,
		CreatedAt:  e.CreatedAt,
	}
}

// MessagesSeen records that ReaderID read Count messages from CounterpartID.
type MessagesSeen struct {
	events.BaseEvent `json:"-"`
	AdID             string    `json:"ad_id"`
	ReaderID         string    `json:"reader_id"`
	CounterpartID    string    `json:"counterpart_id"`
	Count            int64     `json:"count"`
	SeenAt           time.Time `json:"seen_at"`
}

func NewMessagesSeen(adID, readerID, counterpartID string, count int64, at time.Time) MessagesSeen {
	key := NewConversationKey(adID, readerID, counterpartID)
	return MessagesSeen{
		BaseEvent:     events.BaseEvent{Name: EventMessagesSeen, Aggregate: key.String(), Time: at},
		AdID:          adID,
		ReaderID:      readerID,
		CounterpartID: counterpartID,
		Count:         count,
		SeenAt:        at,
	}
}
