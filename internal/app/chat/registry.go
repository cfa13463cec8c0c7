package chat

import (
	"log/slog"
	"strings"
	"sync"

	domain "rentspot/internal/domain/chat"
)

// Sink receives events for one connection. Deliver must not block.
type Sink interface {
	Deliver(ev Event) error
}

// RoomKey names a broadcast room: a conversation or a user's personal channel.
type RoomKey string

const (
	chatRoomPrefix     = "chat:"
	personalRoomPrefix = "user:"
)

func ConversationRoom(key domain.ConversationKey) RoomKey {
	return RoomKey(chatRoomPrefix + key.String())
}

func PersonalRoom(userID string) RoomKey {
	return RoomKey(personalRoomPrefix + userID)
}

// AdID returns the ad of a conversation room, or "" for personal rooms.
func (k RoomKey) AdID() string {
	rest, ok := strings.CutPrefix(string(k), chatRoomPrefix)
	if !ok {
		return ""
	}
	ad, _, _ := strings.Cut(rest, "|")
	return ad
}

// Registry tracks which members are subscribed to which rooms. All membership
// state, including each Member's own room set, is guarded by mu.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[RoomKey]map[*Member]struct{}
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{rooms: make(map[RoomKey]map[*Member]struct{}), logger: logger}
}

// Member is the registry handle owned by one connection.
type Member struct {
	registry *Registry
	sink     Sink
	userID   string
	rooms    map[RoomKey]struct{}
	closed   bool
}

// Attach registers a connection for userID. Call Close when the connection ends.
func (r *Registry) Attach(userID string, sink Sink) *Member {
	return &Member{registry: r, sink: sink, userID: userID, rooms: make(map[RoomKey]struct{})}
}

func (m *Member) UserID() string { return m.userID }

// Join subscribes the member to room. Joining twice is a no-op.
func (m *Member) Join(room RoomKey) {
	r := m.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.closed {
		return
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Member]struct{})
		r.rooms[room] = members
	}
	members[m] = struct{}{}
	m.rooms[room] = struct{}{}
	activeRooms.Set(float64(len(r.rooms)))
}

func (m *Member) Leave(room RoomKey) {
	r := m.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(m, room)
}

// LeaveWhere drops every room the predicate selects.
func (m *Member) LeaveWhere(match func(RoomKey) bool) int {
	r := m.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	left := 0
	for room := range m.rooms {
		if match(room) {
			r.removeLocked(m, room)
			left++
		}
	}
	return left
}

func (m *Member) Rooms() []RoomKey {
	r := m.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomKey, 0, len(m.rooms))
	for room := range m.rooms {
		out = append(out, room)
	}
	return out
}

// Close removes the member from every room. Later Joins are ignored.
func (m *Member) Close() {
	r := m.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range m.rooms {
		r.removeLocked(m, room)
	}
	m.closed = true
}

func (r *Registry) removeLocked(m *Member, room RoomKey) {
	delete(m.rooms, room)
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	activeRooms.Set(float64(len(r.rooms)))
}

// Broadcast delivers ev to every current member of room and returns how many
// sinks accepted it. Delivery failures are logged, never returned.
func (r *Registry) Broadcast(room RoomKey, ev Event) int {
	r.mu.RLock()
	members := make([]*Member, 0, len(r.rooms[room]))
	for m := range r.rooms[room] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range members {
		if err := m.sink.Deliver(ev); err != nil {
			deliveryFailures.WithLabelValues(string(ev.Type)).Inc()
			r.logger.Warn("chat delivery failed", "room", room, "user_id", m.userID, "event", ev.Type, "error", err)
			continue
		}
		delivered++
	}
	eventsBroadcast.WithLabelValues(string(ev.Type)).Inc()
	return delivered
}

func (r *Registry) MemberCount(room RoomKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
