package chat

import (
	"context"
	"sort"
)

type Profile struct {
	UserID      string
	DisplayName string
	Avatar      string
}

type ListingSummary struct {
	AdID         string
	Title        string
	PrimaryImage string
}

// Conversation is a thread summary as seen by one participant.
type Conversation struct {
	AdID        string
	Counterpart Profile
	Listing     ListingSummary
	LastMessage Message
}

// Latest keeps the newest message of every conversation userID takes part in, newest first.
func Latest(userID string, msgs []Message) []Message {
	latest := make(map[ConversationKey]Message)
	for _, msg := range msgs {
		if !msg.Involves(userID) {
			continue
		}
		key := msg.Key()
		if current, ok := latest[key]; !ok || Before(current, msg) {
			latest[key] = msg
		}
	}
	out := make([]Message, 0, len(latest))
	for _, msg := range latest {
		out = append(out, msg)
	}
	SortNewestFirst(out)
	return out
}

func SortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return Before(msgs[j], msgs[i]) })
}

// Store persists chat messages. MarkSeen flips every unseen message from
// senderID to receiverID on adID and reports how many changed.
type Store interface {
	Insert(ctx context.Context, msg Message) error
	MarkSeen(ctx context.Context, adID, senderID, receiverID string) (int64, error)
	Conversation(ctx context.Context, key ConversationKey) ([]Message, error)
	LatestPerConversation(ctx context.Context, userID string) ([]Message, error)
}

type ProfileLookup interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

type ListingLookup interface {
	Listing(ctx context.Context, adID string) (ListingSummary, error)
}
