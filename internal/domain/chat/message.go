package chat

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrIDRequired        = errors.New("chat: message id is required")
	ErrSenderRequired    = errors.New("chat: sender is required")
	ErrReceiverRequired  = errors.New("chat: receiver is required")
	ErrAdRequired        = errors.New("chat: ad is required")
	ErrEmptyMessage      = errors.New("chat: message text or image is required")
	ErrMessageTooLong    = errors.New("chat: message is too long")
	ErrSelfConversation  = errors.New("chat: cannot chat with yourself")
	ErrPersistence       = errors.New("chat: persistence failure")
	ErrCounterpartNeeded = errors.New("chat: counterpart is required")
	ErrInvalidID         = errors.New("chat: ids must not contain ':' or '|'")
)

const MaxBodyLength = 4000

// keySeparators delimit the parts of conversation keys and room names.
const keySeparators = ":|"

// ValidIDs rejects ids that would make a ConversationKey ambiguous.
func ValidIDs(ids ...string) error {
	for _, id := range ids {
		if strings.ContainsAny(id, keySeparators) {
			return ErrInvalidID
		}
	}
	return nil
}

type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	AdID       string
	Body       string
	Image      string
	CreatedAt  time.Time
	Seen       bool
}

type NewMessageParams struct {
	ID         string
	SenderID   string
	ReceiverID string
	AdID       string
	Body       string
	Image      string
	CreatedAt  time.Time
}

func NewMessage(params NewMessageParams) (Message, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return Message{}, ErrIDRequired
	}
	sender := strings.TrimSpace(params.SenderID)
	if sender == "" {
		return Message{}, ErrSenderRequired
	}
	receiver := strings.TrimSpace(params.ReceiverID)
	if receiver == "" {
		return Message{}, ErrReceiverRequired
	}
	if sender == receiver {
		return Message{}, ErrSelfConversation
	}
	ad := strings.TrimSpace(params.AdID)
	if ad == "" {
		return Message{}, ErrAdRequired
	}
	if err := ValidIDs(sender, receiver, ad); err != nil {
		return Message{}, err
	}
	body := strings.TrimSpace(params.Body)
	image := strings.TrimSpace(params.Image)
	if body == "" && image == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return Message{}, ErrMessageTooLong
	}
	created := params.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		AdID:       ad,
		Body:       body,
		Image:      image,
		CreatedAt:  created.UTC(),
	}, nil
}

func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the other participant from userID's point of view.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m Message) Key() ConversationKey {
	return NewConversationKey(m.AdID, m.SenderID, m.ReceiverID)
}

// Preview is the short text shown in notifications and conversation lists.
func (m Message) Preview(limit int) string {
	text := m.Body
	if text == "" && m.Image != "" {
		return "[image]"
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}

// Before orders messages by timestamp, then id.
func Before(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func SortChronologically(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return Before(msgs[i], msgs[j]) })
}

// ConversationKey identifies a thread: one ad and an unordered pair of users.
type ConversationKey struct {
	AdID  string
	UserA string
	UserB string
}

func NewConversationKey(adID, u1, u2 string) ConversationKey {
	u1, u2 = strings.TrimSpace(u1), strings.TrimSpace(u2)
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	return ConversationKey{AdID: strings.TrimSpace(adID), UserA: u1, UserB: u2}
}

func (k ConversationKey) PairKey() string {
	return k.UserA + ":" + k.UserB
}

func (k ConversationKey) String() string {
	return k.AdID + "|" + k.PairKey()
}

func (k ConversationKey) Has(userID string) bool {
	return k.UserA == userID || k.UserB == userID
}
