package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/chat"
	"rentspot/internal/app/commands"
	"rentspot/internal/app/dto"
	"rentspot/internal/app/queries"
	domainchat "rentspot/internal/domain/chat"
)

// ChatHTTP exposes the REST side of chat; live delivery goes over the websocket.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
}

type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	AdID       string `json:"ad_id"`
	Message    string `json:"message"`
	Image      string `json:"image"`
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	convs, err := queries.Ask[chat.ListConversationsQuery, []domainchat.Conversation](c.Request.Context(), h.Queries, chat.ListConversationsQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversations(convs))
}

// ListMessages returns the thread between the current user and :user_id about :ad_id.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	msgs, err := queries.Ask[chat.ListMessagesQuery, []domainchat.Message](c.Request.Context(), h.Queries, chat.ListMessagesQuery{
		AdID:          c.Param("ad_id"),
		UserID:        p.ID,
		CounterpartID: c.Param("user_id"),
	})
	if err != nil {
		respondError(c, h.Logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, dto.MapChatMessages(msgs))
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := commands.Dispatch[chat.SendMessageCommand, domainchat.Message](c.Request.Context(), h.Commands, chat.SendMessageCommand{
		SenderID:   p.ID,
		ReceiverID: req.ReceiverID,
		AdID:       req.AdID,
		Body:       req.Message,
		Image:      req.Image,
	})
	if err != nil {
		respondError(c, h.Logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapChatMessage(msg))
}

var _ ChatHTTP = (*ChatHandler)(nil)
