package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspot/internal/domain/shared/events"
)

type sampleEvent struct {
	events.BaseEvent `json:"-"`
	Value            string `json:"value"`
}

type captureBox struct {
	records []EventRecord
	err     error
}

func (b *captureBox) Add(_ context.Context, rec EventRecord) error {
	if b.err != nil {
		return b.err
	}
	b.records = append(b.records, rec)
	return nil
}

func (b *captureBox) Flush(context.Context) error { return nil }

func TestRecordDomainEventsEncodesPayloadAndOrigin(t *testing.T) {
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	ev := sampleEvent{BaseEvent: events.BaseEvent{Name: "chat.message_sent", Aggregate: "ad1|a:b", Time: at}, Value: "x"}
	box := &captureBox{}
	enc := JSONEventEncoder{IDGenerator: func() string { return "evt-1" }, Origin: "node-a"}

	require.NoError(t, RecordDomainEvents(context.Background(), box, enc, ev))
	require.Len(t, box.records, 1)
	rec := box.records[0]
	assert.Equal(t, "evt-1", rec.ID)
	assert.Equal(t, "chat.message_sent", rec.Name)
	assert.Equal(t, "ad1|a:b", rec.Aggregate)
	assert.Equal(t, at, rec.OccurredAt)
	assert.Equal(t, "node-a", rec.Headers[HeaderOrigin])

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &body))
	assert.Equal(t, map[string]any{"value": "x"}, body)
}

func TestRecordDomainEventsPropagatesErrors(t *testing.T) {
	box := &captureBox{err: errors.New("down")}
	err := RecordDomainEvents(context.Background(), box, nil, sampleEvent{})
	assert.EqualError(t, err, "down")
	assert.NoError(t, RecordDomainEvents(context.Background(), nil, nil, sampleEvent{}))
}

type failingEncoder struct{ after int }

func (e *failingEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	if e.after == 0 {
		return EventRecord{}, errors.New("bad event")
	}
	e.after--
	return EventRecord{Name: ev.EventName()}, nil
}

func TestRecordDomainEventsAddsNothingWhenEncodingFails(t *testing.T) {
	box := &captureBox{}
	err := RecordDomainEvents(context.Background(), box, &failingEncoder{after: 1}, sampleEvent{}, sampleEvent{})
	assert.EqualError(t, err, "bad event")
	assert.Empty(t, box.records)
}
