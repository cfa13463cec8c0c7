package scylla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspot/internal/domain/chat"
	"rentspot/internal/infra/config"
)

func TestRowConversionTruncatesToMillis(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	msg := chat.Message{ID: "m-1", SenderID: "bob", ReceiverID: "alice", AdID: "ad-1", Body: "hi", CreatedAt: at}

	row := toRow(msg)
	assert.Equal(t, "alice:bob", row.PairKey)
	assert.Equal(t, 123*time.Millisecond, time.Duration(row.CreatedAt.Nanosecond()))

	back := row.toDomain()
	assert.Equal(t, msg.Body, back.Body)
	assert.Equal(t, msg.Key(), back.Key())
}

func TestUnseenFromFiltersDirection(t *testing.T) {
	rows := []messageRow{
		{ID: "1", SenderID: "bob", ReceiverID: "alice"},
		{ID: "2", SenderID: "alice", ReceiverID: "bob"},
		{ID: "3", SenderID: "bob", ReceiverID: "alice", Seen: true},
		{ID: "4", SenderID: "bob", ReceiverID: "alice"},
	}
	got := unseenFrom(rows, "bob", "alice")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}

func TestParseConsistency(t *testing.T) {
	c, err := parseConsistency("local_quorum")
	require.NoError(t, err)
	assert.Equal(t, gocql.LocalQuorum, c)

	c, err = parseConsistency("")
	require.NoError(t, err)
	assert.Equal(t, gocql.Quorum, c)

	_, err = parseConsistency("most")
	assert.Error(t, err)
}

func TestNewSessionRejectsBadKeyspace(t *testing.T) {
	_, err := NewSession(context.Background(), config.Config{ScyllaKeyspace: "chat; DROP"}, nil)
	assert.ErrorContains(t, err, "invalid keyspace")
}

func TestSchemaUsesKeyspace(t *testing.T) {
	for name, stmt := range schema("rentspot_chat") {
		assert.Contains(t, stmt, "rentspot_chat."+name)
	}
}

func TestStoreRequiresSession(t *testing.T) {
	s := NewMessageStore(nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Insert(ctx, chat.Message{}), ErrSessionMissing)
	_, err := s.MarkSeen(ctx, "ad-1", "bob", "alice")
	assert.ErrorIs(t, err, ErrSessionMissing)
	_, err = s.Conversation(ctx, chat.NewConversationKey("ad-1", "bob", "alice"))
	assert.ErrorIs(t, err, ErrSessionMissing)
	_, err = s.LatestPerConversation(ctx, "alice")
	assert.ErrorIs(t, err, ErrSessionMissing)
}

func TestMarkSeenCASRetriesLostBatch(t *testing.T) {
	// the first batch loses to a concurrent reader who marked row 1
	scans := [][]messageRow{
		{{ID: "1"}, {ID: "2"}},
		{{ID: "2"}},
	}
	var applies int
	scan := func() ([]messageRow, error) {
		rows := scans[0]
		scans = scans[1:]
		return rows, nil
	}
	apply := func(pending []messageRow) (bool, error) {
		applies++
		return applies > 1, nil
	}

	n, err := markSeenCAS(3, scan, apply)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, applies)
}

func TestMarkSeenCASNothingPending(t *testing.T) {
	n, err := markSeenCAS(3,
		func() ([]messageRow, error) { return nil, nil },
		func([]messageRow) (bool, error) {
			t.Fatal("no batch expected")
			return false, nil
		})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkSeenCASGivesUpWhenContended(t *testing.T) {
	var applies int
	n, err := markSeenCAS(3,
		func() ([]messageRow, error) { return []messageRow{{ID: "1"}}, nil },
		func([]messageRow) (bool, error) { applies++; return false, nil })
	assert.ErrorIs(t, err, ErrSeenContended)
	assert.Zero(t, n)
	assert.Equal(t, 3, applies)
}

func TestMarkSeenCASPropagatesErrors(t *testing.T) {
	boom := errors.New("timeout")
	_, err := markSeenCAS(3,
		func() ([]messageRow, error) { return nil, boom },
		func([]messageRow) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, boom)

	_, err = markSeenCAS(3,
		func() ([]messageRow, error) { return []messageRow{{ID: "1"}}, nil },
		func([]messageRow) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
