package chat

import (
	"context"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/queries"
	domain "rentspot/internal/domain/chat"
)

const (
	SendMessageKey       = "chat.send_message"
	ListConversationsKey = "chat.list_conversations"
	ListMessagesKey      = "chat.list_messages"
)

type SendMessageCommand struct {
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required,nefield=SenderID"`
	AdID       string `validate:"required"`
	Body       string `validate:"max=4000"`
	Image      string `validate:"omitempty,max=512"`
}

func (SendMessageCommand) Key() string { return SendMessageKey }

func (c SendMessageCommand) ActorID() string { return c.SenderID }

type SendMessageHandler struct {
	Router *Router
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	return h.Router.SendMessage(ctx, SendParams{
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		AdID:       cmd.AdID,
		Body:       cmd.Body,
		Image:      cmd.Image,
	})
}

type ListConversationsQuery struct {
	UserID string `validate:"required"`
}

func (ListConversationsQuery) Key() string { return ListConversationsKey }

type ListConversationsHandler struct {
	Router *Router
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) ([]domain.Conversation, error) {
	return h.Router.ListConversations(ctx, q.UserID)
}

type ListMessagesQuery struct {
	AdID          string `validate:"required"`
	UserID        string `validate:"required"`
	CounterpartID string `validate:"required"`
}

func (ListMessagesQuery) Key() string { return ListMessagesKey }

type ListMessagesHandler struct {
	Router *Router
}

func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) ([]domain.Message, error) {
	return h.Router.ListMessages(ctx, q.AdID, q.UserID, q.CounterpartID)
}

// Register wires the chat handlers into the buses.
func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, router *Router) {
	commands.RegisterHandler[SendMessageCommand, domain.Message](cmds, SendMessageKey, &SendMessageHandler{Router: router})
	queries.RegisterHandler[ListConversationsQuery, []domain.Conversation](qs, ListConversationsKey, &ListConversationsHandler{Router: router})
	queries.RegisterHandler[ListMessagesQuery, []domain.Message](qs, ListMessagesKey, &ListMessagesHandler{Router: router})
}
