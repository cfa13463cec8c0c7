package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	due    []*EventDocument
	sent   []string
	failed map[string]string
}

func (q *fakeQueue) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.due) == 0 {
		return nil, nil
	}
	doc := q.due[0]
	q.due = q.due[1:]
	doc.ClaimedBy = workerID
	return doc, nil
}

func (q *fakeQueue) MarkSent(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failed == nil {
		q.failed = map[string]string{}
	}
	q.failed[id] = errMsg
	return nil
}

type sentMessage struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	failFor string
	out     []sentMessage
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if key == p.failFor {
		return errors.New("broker unavailable")
	}
	p.out = append(p.out, sentMessage{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func record(id, name, aggregate string) *EventDocument {
	return &EventDocument{
		ID:         id,
		Name:       name,
		Aggregate:  aggregate,
		Payload:    []byte(`{"ad_id":"ad-1"}`),
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Headers:    map[string]string{"origin": "node-a"},
	}
}

func TestWorkerDrainPublishesCloudEvents(t *testing.T) {
	queue := &fakeQueue{due: []*EventDocument{
		record("ev-1", "chat.message_sent", "ad-1"),
		record("ev-2", "ledger.points_transferred", "alice"),
	}}
	producer := &fakeProducer{}
	w := &Worker{Store: queue, Producer: producer, TopicPrefix: "dev.", ID: "w-1"}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"ev-1", "ev-2"}, queue.sent)

	require.Len(t, producer.out, 2)
	first := producer.out[0]
	assert.Equal(t, "dev.chat.events.v1", first.topic)
	assert.Equal(t, "ad-1", first.key)
	assert.Equal(t, "node-a", first.headers["origin"])
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])

	var ce CloudEvent
	require.NoError(t, json.Unmarshal(first.payload, &ce))
	assert.Equal(t, "ev-1", ce.ID)
	assert.Equal(t, "chat.message_sent", ce.EventName())
	assert.JSONEq(t, `{"ad_id":"ad-1"}`, string(ce.Data))
	assert.Equal(t, "dev.ledger.events.v1", producer.out[1].topic)
}

func TestWorkerMarksFailedAndContinues(t *testing.T) {
	queue := &fakeQueue{due: []*EventDocument{
		record("ev-1", "chat.message_sent", "broken"),
		record("ev-2", "chat.message_sent", "ad-2"),
	}}
	producer := &fakeProducer{failFor: "broken"}
	w := &Worker{Store: queue, Producer: producer, Backoff: []time.Duration{time.Second}}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "broker unavailable", queue.failed["ev-1"])
	assert.Equal(t, []string{"ev-2"}, queue.sent)
}

func TestWorkerRejectsInvalidPayload(t *testing.T) {
	doc := record("ev-1", "chat.message_sent", "ad-1")
	doc.Payload = []byte("not json")
	queue := &fakeQueue{due: []*EventDocument{doc}}
	w := &Worker{Store: queue, Producer: &fakeProducer{}}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Contains(t, queue.failed, "ev-1")
	assert.Empty(t, queue.sent)
}

func TestWorkerDrainRespectsBatchSize(t *testing.T) {
	queue := &fakeQueue{due: []*EventDocument{
		record("ev-1", "chat.message_sent", "ad-1"),
		record("ev-2", "chat.message_sent", "ad-1"),
		record("ev-3", "chat.message_sent", "ad-1"),
	}}
	w := &Worker{Store: queue, Producer: &fakeProducer{}, BatchSize: 2}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, queue.due, 1)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "ledger.events.v1", TopicFor("", "ledger.points_granted"))
	assert.Equal(t, "p.listings.events.v1", TopicFor("p.", "listings.created"))
}
