// Package outbox turns domain events into records that are stored next to the
// state change and shipped to the broker later.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentspot/internal/domain/shared/events"
)

// HeaderOrigin names the instance that produced an event.
const HeaderOrigin = "origin"

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox accepts records during a command. Flush is called once the command
// has succeeded.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder serializes the event body and stamps Origin on every record.
type JSONEventEncoder struct {
	IDGenerator func() string
	Origin      string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	rec := EventRecord{
		ID:         e.newID(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    make(map[string]string, 1),
	}
	if e.Origin != "" {
		rec.Headers[HeaderOrigin] = e.Origin
	}
	return rec, nil
}

func (e JSONEventEncoder) newID() string {
	if e.IDGenerator != nil {
		return e.IDGenerator()
	}
	return uuid.NewString()
}

// RecordDomainEvents encodes every event before adding any, so an encoding
// failure leaves the outbox untouched. A nil box discards the events.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs ...events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	records := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
