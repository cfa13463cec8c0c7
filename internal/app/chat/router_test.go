package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "rentspot/internal/domain/chat"
	"rentspot/internal/infra/storage/memory"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Deliver(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) ofType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Profile), args.Error(1)
}

type mockListings struct {
	mock.Mock
}

func (m *mockListings) Listing(ctx context.Context, adID string) (domain.ListingSummary, error) {
	args := m.Called(ctx, adID)
	return args.Get(0).(domain.ListingSummary), args.Error(1)
}

type failingStore struct {
	*memory.MessageStore
	failInsert bool
	failSeen   bool
}

func (s *failingStore) Insert(ctx context.Context, msg domain.Message) error {
	if s.failInsert {
		return errors.New("mongo down")
	}
	return s.MessageStore.Insert(ctx, msg)
}

func (s *failingStore) MarkSeen(ctx context.Context, adID, senderID, receiverID string) (int64, error) {
	if s.failSeen {
		return 0, errors.New("mongo down")
	}
	return s.MessageStore.MarkSeen(ctx, adID, senderID, receiverID)
}

func newTestRouter(store domain.Store) *Router {
	var n atomic.Int64
	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Router{
		Store:    store,
		Registry: NewRegistry(logger),
		Logger:   logger,
		Clock:    func() time.Time { return base.Add(time.Duration(n.Add(1)) * time.Second) },
		IDs:      func() string { return fmt.Sprintf("msg-%04d", n.Add(1)) },
	}
}

func decode[T any](t *testing.T, ev Event) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Data, &out))
	return out
}

func TestSendMessageBroadcastsAndNotifies(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("Profile", mock.Anything, "alice").Return(domain.Profile{UserID: "alice", DisplayName: "Alice"}, nil)
	router := newTestRouter(memory.NewMessageStore())
	router.Profiles = profiles
	ctx := context.Background()

	aliceSink, bobPersonal, bobChat := &recordingSink{}, &recordingSink{}, &recordingSink{}
	alice := router.Registry.Attach("alice", aliceSink)
	bobP := router.Registry.Attach("bob", bobPersonal)
	bobC := router.Registry.Attach("bob", bobChat)
	router.JoinPersonalChannel(bobP)
	_, err := router.JoinRoom(ctx, alice, "ad1", "bob")
	require.NoError(t, err)
	_, err = router.JoinRoom(ctx, bobC, "ad1", "alice")
	require.NoError(t, err)

	msg, err := router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "Is the drill available?"})
	require.NoError(t, err)
	assert.False(t, msg.Seen)

	for _, sink := range []*recordingSink{aliceSink, bobChat} {
		got := sink.ofType(EventNewMessage)
		require.Len(t, got, 1)
		payload := decode[MessagePayload](t, got[0])
		assert.Equal(t, msg.ID, payload.ID)
		assert.Equal(t, "Is the drill available?", payload.Body)
	}
	notes := bobPersonal.ofType(EventNotification)
	require.Len(t, notes, 1)
	note := decode[NotificationPayload](t, notes[0])
	assert.Equal(t, "Alice", note.SenderName)
	assert.Equal(t, "ad1", note.AdID)
	assert.Equal(t, msg.ID, note.MessageID)
	assert.Empty(t, aliceSink.ofType(EventNotification), "sender gets no notification")
}

func TestSendMessageProfileFailureStillNotifies(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("Profile", mock.Anything, "alice").Return(domain.Profile{}, errors.New("users down"))
	router := newTestRouter(memory.NewMessageStore())
	router.Profiles = profiles

	bob := &recordingSink{}
	router.JoinPersonalChannel(router.Registry.Attach("bob", bob))

	_, err := router.SendMessage(context.Background(), SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "hi"})
	require.NoError(t, err)
	notes := bob.ofType(EventNotification)
	require.Len(t, notes, 1)
	assert.Empty(t, decode[NotificationPayload](t, notes[0]).SenderName)
}

func TestSendMessagePersistFailureBroadcastsNothing(t *testing.T) {
	store := &failingStore{MessageStore: memory.NewMessageStore(), failInsert: true}
	router := newTestRouter(store)
	ctx := context.Background()
	sink := &recordingSink{}
	m := router.Registry.Attach("bob", sink)
	router.JoinPersonalChannel(m)
	_, err := router.JoinRoom(ctx, m, "ad1", "alice")
	require.NoError(t, err)

	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, sink.ofType(EventNewMessage))
	assert.Empty(t, sink.ofType(EventNotification))

	store.failInsert = false
	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "again"})
	require.NoError(t, err)
	assert.Len(t, sink.ofType(EventNewMessage), 1, "a failed send does not stall the conversation")
}

func TestSendMessageRejectsInvalidInput(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	_, err := router.SendMessage(context.Background(), SendParams{SenderID: "alice", ReceiverID: "alice", AdID: "ad1", Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrSelfConversation)
	_, err = router.SendMessage(context.Background(), SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1"})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	_, err = router.SendMessage(context.Background(), SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1|x", Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestJoinRoomMarksSeenOnce(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
	aliceSink := &recordingSink{}
	alice := router.Registry.Attach("alice", aliceSink)
	_, err := router.JoinRoom(ctx, alice, "ad1", "bob")
	require.NoError(t, err)

	bob := router.Registry.Attach("bob", &recordingSink{})
	res, err := router.JoinRoom(ctx, bob, "ad1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Seen)

	seen := aliceSink.ofType(EventMessagesSeen)
	require.Len(t, seen, 1)
	payload := decode[SeenPayload](t, seen[0])
	assert.Equal(t, SeenPayload{AdID: "ad1", ReaderID: "bob", CounterpartID: "alice", Count: 3}, payload)

	res, err = router.JoinRoom(ctx, bob, "ad1", "alice")
	require.NoError(t, err)
	assert.Zero(t, res.Seen)
	assert.Len(t, aliceSink.ofType(EventMessagesSeen), 1, "nothing new to mark, no event")
}

func TestJoinRoomValidation(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	m := router.Registry.Attach("alice", &recordingSink{})
	_, err := router.JoinRoom(context.Background(), m, "", "bob")
	assert.ErrorIs(t, err, domain.ErrAdRequired)
	_, err = router.JoinRoom(context.Background(), m, "ad1", "alice")
	assert.ErrorIs(t, err, domain.ErrSelfConversation)
	assert.Empty(t, m.Rooms())
}

func TestSeparatorsInIDsAreRejected(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	ctx := context.Background()
	m := router.Registry.Attach("alice", &recordingSink{})

	// "ad1|bob" with counterpart "x" would otherwise name a room whose ad
	// parses back as "ad1", and LeaveRoom("ad1") would drop it
	for _, tc := range []struct{ ad, counterpart string }{
		{"ad1|bob", "x"},
		{"ad1", "bob:x"},
	} {
		_, err := router.JoinRoom(ctx, m, tc.ad, tc.counterpart)
		assert.ErrorIs(t, err, domain.ErrInvalidID, tc)
		_, err = router.ListMessages(ctx, tc.ad, "alice", tc.counterpart)
		assert.ErrorIs(t, err, domain.ErrInvalidID, tc)
	}
	assert.Empty(t, m.Rooms())

	_, err := router.JoinRoom(ctx, m, "ad1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, router.LeaveRoom(m, "ad1"))
}

func TestJoinRoomSeenFailureKeepsMembership(t *testing.T) {
	store := &failingStore{MessageStore: memory.NewMessageStore(), failSeen: true}
	router := newTestRouter(store)
	m := router.Registry.Attach("alice", &recordingSink{})
	res, err := router.JoinRoom(context.Background(), m, "ad1", "bob")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 1, router.Registry.MemberCount(res.Room))
}

func TestListMessagesMarksSeenBeforeReading(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	ctx := context.Background()
	_, err := router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "first"})
	require.NoError(t, err)
	_, err = router.SendMessage(ctx, SendParams{SenderID: "bob", ReceiverID: "alice", AdID: "ad1", Body: "second"})
	require.NoError(t, err)
	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad2", Body: "other ad"})
	require.NoError(t, err)

	msgs, err := router.ListMessages(ctx, "ad1", "bob", "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.True(t, msgs[0].Seen, "alice's message is read by bob")
	assert.Equal(t, "second", msgs[1].Body)
	assert.False(t, msgs[1].Seen, "bob's own message stays unread")
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))

	again, err := router.ListMessages(ctx, "ad1", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, msgs, again)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	ctx := context.Background()
	sink := &recordingSink{}
	bob := router.Registry.Attach("bob", sink)
	_, err := router.JoinRoom(ctx, bob, "ad1", "alice")
	require.NoError(t, err)
	_, err = router.JoinRoom(ctx, bob, "ad2", "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, router.LeaveRoom(bob, "ad1"))
	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "gone"})
	require.NoError(t, err)
	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad2", Body: "still here"})
	require.NoError(t, err)

	got := sink.ofType(EventNewMessage)
	require.Len(t, got, 1)
	assert.Equal(t, "still here", decode[MessagePayload](t, got[0]).Body)
}

func TestConcurrentSendsArriveInTimestampOrder(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	ctx := context.Background()
	watcher := &recordingSink{}
	router.Registry.Attach("observer", watcher).Join(ConversationRoom(domain.NewConversationKey("ad1", "alice", "bob")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "alice", "bob"
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := router.SendMessage(ctx, SendParams{SenderID: from, ReceiverID: to, AdID: "ad1", Body: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got := watcher.ofType(EventNewMessage)
	require.Len(t, got, 50)
	var prev time.Time
	for _, ev := range got {
		p := decode[MessagePayload](t, ev)
		assert.True(t, p.Timestamp.After(prev), "broadcast order follows timestamps")
		prev = p.Timestamp
	}

	stored, err := router.Store.Conversation(ctx, domain.NewConversationKey("ad1", "alice", "bob"))
	require.NoError(t, err)
	require.Len(t, stored, 50)
	for i, ev := range got {
		assert.Equal(t, stored[i].ID, decode[MessagePayload](t, ev).ID)
	}
}

func TestListConversationsEnriches(t *testing.T) {
	profiles := &mockProfiles{}
	listings := &mockListings{}
	router := newTestRouter(memory.NewMessageStore())
	router.Profiles = profiles
	router.Listings = listings
	ctx := context.Background()

	profiles.On("Profile", mock.Anything, "alice").Return(domain.Profile{UserID: "alice", DisplayName: "Alice"}, nil)
	profiles.On("Profile", mock.Anything, "bob").Return(domain.Profile{UserID: "bob", DisplayName: "Bob", Avatar: "https://cdn/bob.png"}, nil)
	profiles.On("Profile", mock.Anything, "carol").Return(domain.Profile{}, errors.New("missing"))
	listings.On("Listing", mock.Anything, "ad1").Return(domain.ListingSummary{AdID: "ad1", Title: "Drill"}, nil)
	listings.On("Listing", mock.Anything, "ad2").Return(domain.ListingSummary{}, errors.New("deleted"))

	_, err := router.SendMessage(ctx, SendParams{SenderID: "bob", ReceiverID: "alice", AdID: "ad1", Body: "old"})
	require.NoError(t, err)
	_, err = router.SendMessage(ctx, SendParams{SenderID: "carol", ReceiverID: "alice", AdID: "ad2", Body: "newer"})
	require.NoError(t, err)
	_, err = router.SendMessage(ctx, SendParams{SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "newest"})
	require.NoError(t, err)

	convs, err := router.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "newest", convs[0].LastMessage.Body)
	assert.Equal(t, "Bob", convs[0].Counterpart.DisplayName)
	assert.Equal(t, "Drill", convs[0].Listing.Title)
	assert.Equal(t, "carol", convs[1].Counterpart.UserID)
	assert.Empty(t, convs[1].Counterpart.DisplayName)
	assert.Equal(t, "ad2", convs[1].Listing.AdID)
}

func TestApplyRemoteReplaysIntoRooms(t *testing.T) {
	router := newTestRouter(memory.NewMessageStore())
	room, personal := &recordingSink{}, &recordingSink{}
	router.Registry.Attach("alice", room).Join(ConversationRoom(domain.NewConversationKey("ad1", "alice", "bob")))
	router.JoinPersonalChannel(router.Registry.Attach("bob", personal))

	msg := domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", AdID: "ad1", Body: "from node b", CreatedAt: time.Now().UTC()}
	payload, err := json.Marshal(domain.NewMessageSent(msg, "Alice"))
	require.NoError(t, err)
	require.NoError(t, router.ApplyRemote(domain.EventMessageSent, payload))

	require.Len(t, room.ofType(EventNewMessage), 1)
	notes := personal.ofType(EventNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "Alice", decode[NotificationPayload](t, notes[0]).SenderName)

	seen, err := json.Marshal(domain.NewMessagesSeen("ad1", "bob", "alice", 2, time.Now()))
	require.NoError(t, err)
	require.NoError(t, router.ApplyRemote(domain.EventMessagesSeen, seen))
	require.Len(t, room.ofType(EventMessagesSeen), 1)

	assert.Error(t, router.ApplyRemote(domain.EventMessageSent, []byte("{")))
	assert.NoError(t, router.ApplyRemote("ledger.points_granted", []byte("{}")))
}
