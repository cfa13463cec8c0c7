package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentspot/internal/infra/outbox"
)

type applierMock struct {
	mock.Mock
}

func (m *applierMock) ApplyRemote(name string, payload []byte) error {
	args := m.Called(name, string(payload))
	return args.Error(0)
}

type memoryInbox map[string]bool

func (m memoryInbox) Seen(ctx context.Context, id string) (bool, error) {
	if m[id] {
		return true, nil
	}
	m[id] = true
	return false, nil
}

type failingInbox struct{}

func (failingInbox) Seen(context.Context, string) (bool, error) {
	return false, errors.New("mongo down")
}

func chatMessage(t *testing.T, id, origin string) *sarama.ConsumerMessage {
	t.Helper()
	body, err := json.Marshal(outbox.CloudEvent{
		SpecVersion: "1.0",
		ID:          id,
		Type:        "chat.message_sent.v1",
		Time:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Data:        json.RawMessage(`{"ad_id":"ad-1"}`),
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{
		Topic:   "chat.events.v1",
		Value:   body,
		Headers: []*sarama.RecordHeader{{Key: []byte("origin"), Value: []byte(origin)}},
	}
}

func TestChatRelayAppliesRemoteEventsOnce(t *testing.T) {
	applier := &applierMock{}
	applier.On("ApplyRemote", "chat.message_sent", `{"ad_id":"ad-1"}`).Return(nil).Once()
	relay := &ChatRelay{Applier: applier, Inbox: memoryInbox{}, Origin: "node-a"}

	msg := chatMessage(t, "ev-1", "node-b")
	require.NoError(t, relay.Handle(context.Background(), msg))
	require.NoError(t, relay.Handle(context.Background(), msg))

	applier.AssertExpectations(t)
}

func TestChatRelaySkipsOwnOrigin(t *testing.T) {
	applier := &applierMock{}
	relay := &ChatRelay{Applier: applier, Inbox: memoryInbox{}, Origin: "node-a"}

	require.NoError(t, relay.Handle(context.Background(), chatMessage(t, "ev-1", "node-a")))
	applier.AssertNotCalled(t, "ApplyRemote", mock.Anything, mock.Anything)
}

func TestChatRelayDropsMalformedRecords(t *testing.T) {
	applier := &applierMock{}
	relay := &ChatRelay{Applier: applier, Origin: "node-a"}

	err := relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")})
	require.NoError(t, err)
	applier.AssertNotCalled(t, "ApplyRemote", mock.Anything, mock.Anything)
}

func TestChatRelayReportsInboxFailure(t *testing.T) {
	relay := &ChatRelay{Applier: &applierMock{}, Inbox: failingInbox{}, Origin: "node-a"}

	err := relay.Handle(context.Background(), chatMessage(t, "ev-1", "node-b"))
	assert.Error(t, err)
}
