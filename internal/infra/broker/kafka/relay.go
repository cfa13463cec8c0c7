package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	appoutbox "rentspot/internal/app/outbox"
	"rentspot/internal/infra/outbox"
)

// RemoteApplier re-broadcasts an event produced by another instance.
type RemoteApplier interface {
	ApplyRemote(name string, payload []byte) error
}

// Deduper reports whether an event id was already consumed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// ChatRelay feeds chat events from other instances into the local rooms.
// Events stamped with this instance's origin were delivered locally already.
type ChatRelay struct {
	Applier RemoteApplier
	Inbox   Deduper
	Origin  string
	Logger  *slog.Logger
}

func (r *ChatRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if origin := header(msg, appoutbox.HeaderOrigin); origin != "" && origin == r.Origin {
		return nil
	}
	var ce outbox.CloudEvent
	if err := json.Unmarshal(msg.Value, &ce); err != nil {
		// a malformed record would block the partition forever
		r.logger().Warn("relay dropped malformed event", slog.Int64("offset", msg.Offset), slog.Any("err", err))
		return nil
	}
	if r.Inbox != nil && ce.ID != "" {
		seen, err := r.Inbox.Seen(ctx, ce.ID)
		if err != nil {
			return fmt.Errorf("relay inbox: %w", err)
		}
		if seen {
			return nil
		}
	}
	if err := r.Applier.ApplyRemote(ce.EventName(), ce.Data); err != nil {
		r.logger().Warn("relay apply failed",
			slog.String("event_id", ce.ID),
			slog.String("type", ce.Type),
			slog.Any("err", err))
	}
	return nil
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (r *ChatRelay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
