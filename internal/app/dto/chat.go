package dto

import (
	"time"

	domainchat "rentspot/internal/domain/chat"
)

type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	AdID       string    `json:"ad_id"`
	Message    string    `json:"message"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"timestamp"`
}

type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

type ConversationUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type ConversationAd struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}

// Conversation describes one thread in the inbox.
type Conversation struct {
	Ad          ConversationAd   `json:"ad"`
	Counterpart ConversationUser `json:"user"`
	LastMessage ChatMessage      `json:"last_message"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

func MapChatMessage(m domainchat.Message) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		AdID:       m.AdID,
		Message:    m.Body,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
	}
}

func MapChatMessages(msgs []domainchat.Message) ChatMessageList {
	out := ChatMessageList{Items: make([]ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, MapChatMessage(m))
	}
	return out
}

func MapConversations(convs []domainchat.Conversation) ConversationList {
	out := ConversationList{Items: make([]Conversation, 0, len(convs))}
	for _, c := range convs {
		out.Items = append(out.Items, Conversation{
			Ad: ConversationAd{
				ID:    c.AdID,
				Title: c.Listing.Title,
				Image: c.Listing.PrimaryImage,
			},
			Counterpart: ConversationUser{
				ID:     c.Counterpart.UserID,
				Name:   c.Counterpart.DisplayName,
				Avatar: c.Counterpart.Avatar,
			},
			LastMessage: MapChatMessage(c.LastMessage),
		})
	}
	return out
}
