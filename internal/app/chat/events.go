package chat

import (
	"encoding/json"
	"time"

	domain "rentspot/internal/domain/chat"
)

type EventType string

const (
	EventNewMessage   EventType = "new_message"
	EventMessagesSeen EventType = "messages_seen"
	EventNotification EventType = "notification"
	EventJoinedChat   EventType = "joined_chat"
	EventError        EventType = "error"
	EventPong         EventType = "pong"
)

// Event is one frame pushed to a subscriber. Data is encoded once and shared
// by every recipient of a broadcast.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEvent(t EventType, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Data: data}, nil
}

type MessagePayload struct {
	ID         string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	AdID       string    `json:"ad_id"`
	Body       string    `json:"message"`
	Image      string    `json:"image,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Seen       bool      `json:"seen"`
}

func NewMessagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		AdID:       m.AdID,
		Body:       m.Body,
		Image:      m.Image,
		Timestamp:  m.CreatedAt,
		Seen:       m.Seen,
	}
}

// SeenPayload tells the sender that ReaderID has read Count of their messages.
type SeenPayload struct {
	AdID          string `json:"ad_id"`
	ReaderID      string `json:"reader_id"`
	CounterpartID string `json:"counterpart_id"`
	Count         int64  `json:"count"`
}

type NotificationPayload struct {
	Kind       string    `json:"kind"`
	MessageID  string    `json:"message_id"`
	AdID       string    `json:"ad_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Preview    string    `json:"preview"`
	Timestamp  time.Time `json:"timestamp"`
}

type JoinedPayload struct {
	AdID          string `json:"ad_id"`
	CounterpartID string `json:"counterpart_id"`
	Seen          int64  `json:"seen"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const previewLength = 80

func newNotification(m domain.Message, senderName string) NotificationPayload {
	return NotificationPayload{
		Kind:       "new_message",
		MessageID:  m.ID,
		AdID:       m.AdID,
		SenderID:   m.SenderID,
		SenderName: senderName,
		Preview:    m.Preview(previewLength),
		Timestamp:  m.CreatedAt,
	}
}
