package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"rentspot/internal/app/chat"
	"rentspot/internal/app/commands"
	"rentspot/internal/app/services/auth"
	domain "rentspot/internal/domain/chat"
	"rentspot/internal/infra/validation"
)

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rentspot",
	Subsystem: "ws",
	Name:      "live_connections",
	Help:      "Open websocket connections on this instance.",
})

// Handler upgrades authenticated requests and speaks the chat protocol.
type Handler struct {
	Router    *chat.Router
	Commands  commands.Bus
	Logger    *slog.Logger
	RateLimit rate.Limit
	Burst     int
	Upgrader  websocket.Upgrader
}

// Serve upgrades the request and blocks until the connection ends. The user
// joins their personal channel on connect.
func (h *Handler) Serve(ctx context.Context, userID string, w http.ResponseWriter, r *http.Request) error {
	socket, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn := newConn(socket)
	member := h.Router.Registry.Attach(userID, conn)
	h.Router.JoinPersonalChannel(member)
	liveConnections.Inc()
	logger := h.logger().With("user_id", userID)
	logger.Debug("ws connected")

	go conn.writePump()
	defer func() {
		member.Close()
		conn.Close()
		liveConnections.Dec()
		logger.Debug("ws disconnected")
	}()

	ctx = auth.WithActor(ctx, userID)
	limiter := rate.NewLimiter(h.limit(), h.burst())
	socket.SetReadLimit(maxFrameSize)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var frame clientFrame
		if err := socket.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws read failed", "error", err)
			}
			if malformedFrame(err) {
				h.reply(conn, errorEvent(CodeBadRequest, "malformed frame"))
				continue
			}
			return nil
		}
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))
		if !limiter.Allow() {
			h.reply(conn, errorEvent(CodeRateLimited, "too many events"))
			continue
		}
		h.handle(ctx, member, conn, frame)
	}
}

func (h *Handler) handle(ctx context.Context, member *chat.Member, conn *Conn, frame clientFrame) {
	switch frame.Type {
	case EventPing:
		h.reply(conn, chat.Event{Type: chat.EventPong})
	case EventJoinUserRoom:
		h.Router.JoinPersonalChannel(member)
	case EventJoinChat:
		var data joinChatData
		if !h.decode(conn, frame, &data) {
			return
		}
		res, err := h.Router.JoinRoom(ctx, member, data.AdID, data.CounterpartID)
		if err != nil && res.Room == "" {
			h.reply(conn, h.errorFor(err))
			return
		}
		if err != nil {
			h.logger().Warn("join marked no messages seen", "ad_id", data.AdID, "error", err)
		}
		ev, encErr := chat.NewEvent(chat.EventJoinedChat, chat.JoinedPayload{
			AdID:          data.AdID,
			CounterpartID: data.CounterpartID,
			Seen:          res.Seen,
		})
		if encErr == nil {
			h.reply(conn, ev)
		}
	case EventLeaveChat:
		var data leaveChatData
		if !h.decode(conn, frame, &data) {
			return
		}
		h.Router.LeaveRoom(member, data.AdID)
	case EventSendMessage:
		var data sendMessageData
		if !h.decode(conn, frame, &data) {
			return
		}
		_, err := commands.Dispatch[chat.SendMessageCommand, domain.Message](ctx, h.Commands, chat.SendMessageCommand{
			SenderID:   member.UserID(),
			ReceiverID: data.ReceiverID,
			AdID:       data.AdID,
			Body:       data.Message,
			Image:      data.Image,
		})
		if err != nil {
			h.reply(conn, h.errorFor(err))
		}
	default:
		h.reply(conn, errorEvent(CodeUnknownEvent, "unknown event "+frame.Type))
	}
}

func (h *Handler) decode(conn *Conn, frame clientFrame, out any) bool {
	if len(frame.Data) == 0 {
		h.reply(conn, errorEvent(CodeBadRequest, frame.Type+" requires data"))
		return false
	}
	if err := json.Unmarshal(frame.Data, out); err != nil {
		h.reply(conn, errorEvent(CodeBadRequest, "malformed "+frame.Type+" data"))
		return false
	}
	return true
}

func (h *Handler) errorFor(err error) chat.Event {
	switch {
	case errors.Is(err, validation.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrSelfConversation),
		errors.Is(err, domain.ErrAdRequired),
		errors.Is(err, domain.ErrReceiverRequired),
		errors.Is(err, domain.ErrCounterpartNeeded),
		errors.Is(err, domain.ErrInvalidID):
		return errorEvent(CodeInvalidInput, err.Error())
	case errors.Is(err, auth.ErrActorMismatch):
		return errorEvent(CodeForbidden, "not allowed")
	case errors.Is(err, domain.ErrPersistence):
		return errorEvent(CodeUnavailable, "message could not be stored, try again")
	default:
		h.logger().Error("ws command failed", "error", err)
		return errorEvent(CodeInternal, "internal error")
	}
}

// malformedFrame reports decode errors that leave the connection usable: the
// whole frame was read but did not fit a clientFrame.
func malformedFrame(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (h *Handler) reply(conn *Conn, ev chat.Event) {
	if err := conn.Deliver(ev); err != nil {
		h.logger().Debug("ws reply dropped", "type", ev.Type, "error", err)
	}
}

func errorEvent(code, message string) chat.Event {
	ev, _ := chat.NewEvent(chat.EventError, chat.ErrorPayload{Code: code, Message: message})
	return ev
}

func (h *Handler) limit() rate.Limit {
	if h.RateLimit <= 0 {
		return rate.Limit(10)
	}
	return h.RateLimit
}

func (h *Handler) burst() int {
	if h.Burst <= 0 {
		return 20
	}
	return h.Burst
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
