package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c fakeClaim) Topic() string                            { return "chat.events.v1" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type flakyHandler struct {
	failures map[int64]int
	calls    map[int64]int
}

func (h *flakyHandler) Handle(_ context.Context, msg *sarama.ConsumerMessage) error {
	h.calls[msg.Offset]++
	if h.calls[msg.Offset] <= h.failures[msg.Offset] {
		return errors.New("transient")
	}
	return nil
}

func claimOf(offsets ...int64) fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, off := range offsets {
		ch <- &sarama.ConsumerMessage{Topic: "chat.events.v1", Offset: off}
	}
	close(ch)
	return fakeClaim{messages: ch}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestConsumeClaimRetriesThenMarks(t *testing.T) {
	handler := &flakyHandler{failures: map[int64]int{2: 1}, calls: map[int64]int{}}
	gh := groupHandler{handler: handler, logger: quietLogger(), backoff: []time.Duration{time.Millisecond}}
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, gh.ConsumeClaim(sess, claimOf(1, 2, 3)))
	assert.Equal(t, []int64{1, 2, 3}, sess.marked)
	assert.Equal(t, 2, handler.calls[2])
}

func TestConsumeClaimSkipsPoisonMessage(t *testing.T) {
	handler := &flakyHandler{failures: map[int64]int{1: 100}, calls: map[int64]int{}}
	gh := groupHandler{handler: handler, logger: quietLogger(), backoff: []time.Duration{time.Millisecond, time.Millisecond}}
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, gh.ConsumeClaim(sess, claimOf(1, 2)))
	assert.Equal(t, []int64{1, 2}, sess.marked)
	assert.Equal(t, 3, handler.calls[1])
}

func TestConsumeClaimStopsWithSession(t *testing.T) {
	handler := &flakyHandler{failures: map[int64]int{1: 100}, calls: map[int64]int{}}
	gh := groupHandler{handler: handler, logger: quietLogger(), backoff: []time.Duration{time.Hour}}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &fakeSession{ctx: ctx}

	done := make(chan error, 1)
	go func() { done <- gh.ConsumeClaim(sess, claimOf(1)) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after the session ended")
	}
	assert.Empty(t, sess.marked)
}
