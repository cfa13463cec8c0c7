package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentspot/internal/app/outbox"
	domain "rentspot/internal/domain/chat"
	"rentspot/internal/domain/shared/events"
)

// Router accepts chat commands, persists messages and fans events out to rooms.
type Router struct {
	Store    domain.Store
	Registry *Registry
	Profiles domain.ProfileLookup
	Listings domain.ListingLookup
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Clock    func() time.Time
	IDs      func() string

	once sync.Once
	seq  *sequencer
}

type SendParams struct {
	SenderID   string
	ReceiverID string
	AdID       string
	Body       string
	Image      string
}

type JoinResult struct {
	Room RoomKey
	Seen int64
}

// JoinPersonalChannel subscribes the member to notifications addressed to its user.
func (r *Router) JoinPersonalChannel(m *Member) RoomKey {
	room := PersonalRoom(m.UserID())
	m.Join(room)
	return room
}

// JoinRoom subscribes the member to the conversation with counterpartID about
// adID and marks the counterpart's messages as read.
func (r *Router) JoinRoom(ctx context.Context, m *Member, adID, counterpartID string) (JoinResult, error) {
	userID := m.UserID()
	adID = strings.TrimSpace(adID)
	counterpartID = strings.TrimSpace(counterpartID)
	switch {
	case adID == "":
		return JoinResult{}, domain.ErrAdRequired
	case counterpartID == "":
		return JoinResult{}, domain.ErrCounterpartNeeded
	case counterpartID == userID:
		return JoinResult{}, domain.ErrSelfConversation
	}
	if err := domain.ValidIDs(adID, userID, counterpartID); err != nil {
		return JoinResult{}, err
	}
	room := ConversationRoom(domain.NewConversationKey(adID, userID, counterpartID))
	m.Join(room)

	seen, err := r.markSeen(ctx, adID, userID, counterpartID)
	if err != nil {
		return JoinResult{Room: room}, err
	}
	return JoinResult{Room: room, Seen: seen}, nil
}

// LeaveRoom drops every conversation room of adID the member is in.
func (r *Router) LeaveRoom(m *Member, adID string) int {
	adID = strings.TrimSpace(adID)
	return m.LeaveWhere(func(room RoomKey) bool {
		return adID != "" && room.AdID() == adID
	})
}

// SendMessage persists a message, then broadcasts it to the conversation and
// notifies the receiver. Messages of one conversation are published in the
// order their timestamps were assigned.
func (r *Router) SendMessage(ctx context.Context, p SendParams) (domain.Message, error) {
	key := domain.NewConversationKey(p.AdID, p.SenderID, p.ReceiverID)
	tk := r.sequencer().Reserve(key.String())

	msg, err := domain.NewMessage(domain.NewMessageParams{
		ID:         r.newID(),
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		AdID:       p.AdID,
		Body:       p.Body,
		Image:      p.Image,
		CreatedAt:  tk.At,
	})
	if err != nil {
		tk.Complete(nil)
		return domain.Message{}, err
	}
	if err := r.Store.Insert(ctx, msg); err != nil {
		tk.Complete(nil)
		return domain.Message{}, fmt.Errorf("%w: insert message: %v", domain.ErrPersistence, err)
	}

	senderName := r.displayName(ctx, msg.SenderID)
	newMessage, encErr := NewEvent(EventNewMessage, NewMessagePayload(msg))
	notification, notifErr := NewEvent(EventNotification, newNotification(msg, senderName))
	tk.Complete(func() {
		if encErr == nil {
			r.Registry.Broadcast(ConversationRoom(key), newMessage)
		}
		if notifErr == nil {
			r.Registry.Broadcast(PersonalRoom(msg.ReceiverID), notification)
		}
	})
	if err := errors.Join(encErr, notifErr); err != nil {
		r.logger().Error("chat event encoding failed", "message_id", msg.ID, "error", err)
	}

	r.record(ctx, domain.NewMessageSent(msg, senderName))
	messagesSent.Inc()
	r.logger().Debug("chat message sent", "message_id", msg.ID, "ad_id", msg.AdID, "sender_id", msg.SenderID, "receiver_id", msg.ReceiverID)
	return msg, nil
}

// ListConversations returns one summary per thread of userID, newest first.
// Profile and listing lookups are best effort.
func (r *Router) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	latest, err := r.Store.LatestPerConversation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: latest messages: %v", domain.ErrPersistence, err)
	}
	domain.SortNewestFirst(latest)
	out := make([]domain.Conversation, 0, len(latest))
	for _, msg := range latest {
		conv := domain.Conversation{
			AdID:        msg.AdID,
			LastMessage: msg,
			Counterpart: domain.Profile{UserID: msg.Counterpart(userID)},
			Listing:     domain.ListingSummary{AdID: msg.AdID},
		}
		if r.Profiles != nil {
			profile, err := r.Profiles.Profile(ctx, conv.Counterpart.UserID)
			if err != nil {
				r.logger().Warn("counterpart profile lookup failed", "user_id", conv.Counterpart.UserID, "error", err)
			} else {
				conv.Counterpart = profile
			}
		}
		if r.Listings != nil {
			listing, err := r.Listings.Listing(ctx, msg.AdID)
			if err != nil {
				r.logger().Warn("listing lookup failed", "ad_id", msg.AdID, "error", err)
			} else {
				conv.Listing = listing
			}
		}
		out = append(out, conv)
	}
	return out, nil
}

// ListMessages marks the counterpart's messages read, then returns the whole
// conversation in chronological order.
func (r *Router) ListMessages(ctx context.Context, adID, userID, counterpartID string) ([]domain.Message, error) {
	if strings.TrimSpace(adID) == "" {
		return nil, domain.ErrAdRequired
	}
	if strings.TrimSpace(counterpartID) == "" {
		return nil, domain.ErrCounterpartNeeded
	}
	if err := domain.ValidIDs(adID, userID, counterpartID); err != nil {
		return nil, err
	}
	if _, err := r.markSeen(ctx, adID, userID, counterpartID); err != nil {
		return nil, err
	}
	msgs, err := r.Store.Conversation(ctx, domain.NewConversationKey(adID, userID, counterpartID))
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation: %v", domain.ErrPersistence, err)
	}
	domain.SortChronologically(msgs)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// ApplyRemote replays an event produced by another instance into local rooms.
func (r *Router) ApplyRemote(name string, payload []byte) error {
	switch name {
	case domain.EventMessageSent:
		var ev domain.MessageSent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		msg := ev.Message()
		newMessage, err := NewEvent(EventNewMessage, NewMessagePayload(msg))
		if err != nil {
			return err
		}
		notification, err := NewEvent(EventNotification, newNotification(msg, ev.SenderName))
		if err != nil {
			return err
		}
		r.Registry.Broadcast(ConversationRoom(msg.Key()), newMessage)
		r.Registry.Broadcast(PersonalRoom(msg.ReceiverID), notification)
	case domain.EventMessagesSeen:
		var ev domain.MessagesSeen
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		r.broadcastSeen(ev.AdID, ev.ReaderID, ev.CounterpartID, ev.Count)
	default:
		return nil
	}
	relayedEvents.WithLabelValues(name).Inc()
	return nil
}

func (r *Router) markSeen(ctx context.Context, adID, readerID, counterpartID string) (int64, error) {
	n, err := r.Store.MarkSeen(ctx, adID, counterpartID, readerID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark seen: %v", domain.ErrPersistence, err)
	}
	if n > 0 {
		r.broadcastSeen(adID, readerID, counterpartID, n)
		r.record(ctx, domain.NewMessagesSeen(adID, readerID, counterpartID, n, r.now()))
	}
	return n, nil
}

func (r *Router) broadcastSeen(adID, readerID, counterpartID string, count int64) {
	ev, err := NewEvent(EventMessagesSeen, SeenPayload{AdID: adID, ReaderID: readerID, CounterpartID: counterpartID, Count: count})
	if err != nil {
		r.logger().Error("chat event encoding failed", "event", EventMessagesSeen, "error", err)
		return
	}
	r.Registry.Broadcast(ConversationRoom(domain.NewConversationKey(adID, readerID, counterpartID)), ev)
}

func (r *Router) displayName(ctx context.Context, userID string) string {
	if r.Profiles == nil {
		return ""
	}
	profile, err := r.Profiles.Profile(ctx, userID)
	if err != nil {
		r.logger().Warn("sender profile lookup failed", "user_id", userID, "error", err)
		return ""
	}
	return profile.DisplayName
}

func (r *Router) record(ctx context.Context, ev events.DomainEvent) {
	if r.Outbox == nil {
		return
	}
	if err := outbox.RecordDomainEvents(ctx, r.Outbox, r.Encoder, ev); err != nil {
		r.logger().Warn("chat event not recorded", "event", ev.EventName(), "error", err)
	}
}

func (r *Router) sequencer() *sequencer {
	r.once.Do(func() {
		r.seq = newSequencer(r.Clock)
	})
	return r.seq
}

func (r *Router) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func (r *Router) newID() string {
	if r.IDs != nil {
		return r.IDs()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (r *Router) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
