package ws

import "encoding/json"

// Client event types.
const (
	EventJoinUserRoom = "join_user_room"
	EventJoinChat     = "join_chat"
	EventLeaveChat    = "leave_chat"
	EventSendMessage  = "send_message"
	EventPing         = "ping"
)

// Error codes sent back in error events.
const (
	CodeBadRequest   = "bad_request"
	CodeInvalidInput = "invalid_input"
	CodeForbidden    = "forbidden"
	CodeRateLimited  = "rate_limited"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
	CodeUnknownEvent = "unknown_event"
)

type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinChatData struct {
	AdID          string `json:"ad_id"`
	CounterpartID string `json:"counterpart_id"`
}

type leaveChatData struct {
	AdID string `json:"ad_id"`
}

type sendMessageData struct {
	ReceiverID string `json:"receiver_id"`
	AdID       string `json:"ad_id"`
	Message    string `json:"message"`
	Image      string `json:"image,omitempty"`
}
