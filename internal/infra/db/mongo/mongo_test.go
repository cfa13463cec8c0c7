package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"rentspot/internal/domain/chat"
	"rentspot/internal/domain/ledger"
	domainuser "rentspot/internal/domain/user"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestLedgerStoreDebitIfSufficient(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("debits when funds suffice", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "alice"},
			{Key: "balance", Value: int64(70)},
		}}))

		balance, err := store.DebitIfSufficient(ctx, "alice", 30, at)
		require.NoError(mt, err)
		assert.Equal(mt, int64(70), balance)
	})

	mt.Run("reports insufficient funds for existing account", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.ledger_accounts", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "alice"},
				{Key: "balance", Value: int64(10)},
			}),
		)

		balance, err := store.DebitIfSufficient(ctx, "alice", 30, at)
		require.ErrorIs(mt, err, ledger.ErrInsufficientFunds)
		assert.Equal(mt, int64(10), balance)
	})

	mt.Run("reports missing account", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, "test.ledger_accounts", mtest.FirstBatch),
		)

		_, err := store.DebitIfSufficient(ctx, "ghost", 30, at)
		require.ErrorIs(mt, err, ledger.ErrAccountNotFound)
	})
}

func TestLedgerStoreCreateAccountDuplicate(t *testing.T) {
	mt := newMock(t)
	mt.Run("duplicate key maps to account exists", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := store.CreateAccount(context.Background(), ledger.Account{UserID: "alice", Balance: 100})
		require.ErrorIs(mt, err, ledger.ErrAccountExists)
	})
}

func TestLedgerStoreTransactions(t *testing.T) {
	mt := newMock(t)
	mt.Run("decodes log entries", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.ledger_transactions", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "tx-2"},
				{Key: "from_user_id", Value: "alice"},
				{Key: "to_user_id", Value: "bob"},
				{Key: "amount", Value: int64(15)},
				{Key: "kind", Value: "transfer"},
				{Key: "description", Value: "Points transfer"},
				{Key: "created_at", Value: created},
			},
			bson.D{
				{Key: "_id", Value: "tx-1"},
				{Key: "from_user_id", Value: ledger.SystemAccount},
				{Key: "to_user_id", Value: "alice"},
				{Key: "amount", Value: int64(100)},
				{Key: "kind", Value: "grant"},
				{Key: "created_at", Value: created.Add(-time.Hour)},
			},
		))

		txs, err := store.Transactions(context.Background(), "alice")
		require.NoError(mt, err)
		require.Len(mt, txs, 2)
		assert.Equal(mt, ledger.KindTransfer, txs[0].Kind)
		assert.Equal(mt, int64(15), txs[0].Amount)
		assert.Equal(mt, ledger.SystemAccount, txs[1].FromUserID)
		assert.True(mt, txs[0].CreatedAt.Equal(created))
	})
}

func TestMessageStore(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("mark seen returns modified count", func(mt *mtest.T) {
		store := NewMessageStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(3)},
			bson.E{Key: "nModified", Value: int32(3)},
		))

		n, err := store.MarkSeen(ctx, "ad-1", "bob", "alice")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("conversation decodes messages", func(mt *mtest.T) {
		store := NewMessageStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.chat_messages", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "m-1"},
				{Key: "sender_id", Value: "alice"},
				{Key: "receiver_id", Value: "bob"},
				{Key: "ad_id", Value: "ad-1"},
				{Key: "pair_key", Value: "alice:bob"},
				{Key: "message", Value: "hello"},
				{Key: "created_at", Value: sent.UnixMilli()},
				{Key: "seen", Value: true},
			},
		))

		msgs, err := store.Conversation(ctx, chat.NewConversationKey("ad-1", "bob", "alice"))
		require.NoError(mt, err)
		require.Len(mt, msgs, 1)
		assert.Equal(mt, "hello", msgs[0].Body)
		assert.True(mt, msgs[0].Seen)
		assert.True(mt, msgs[0].CreatedAt.Equal(sent))
	})

	mt.Run("latest per conversation uses aggregation", func(mt *mtest.T) {
		store := NewMessageStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.chat_messages", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "m-9"},
				{Key: "sender_id", Value: "carol"},
				{Key: "receiver_id", Value: "alice"},
				{Key: "ad_id", Value: "ad-2"},
				{Key: "message", Value: "still available?"},
				{Key: "created_at", Value: sent.Add(time.Minute).UnixMilli()},
			},
			bson.D{
				{Key: "_id", Value: "m-1"},
				{Key: "sender_id", Value: "alice"},
				{Key: "receiver_id", Value: "bob"},
				{Key: "ad_id", Value: "ad-1"},
				{Key: "message", Value: "hello"},
				{Key: "created_at", Value: sent.UnixMilli()},
			},
		))

		msgs, err := store.LatestPerConversation(ctx, "alice")
		require.NoError(mt, err)
		require.Len(mt, msgs, 2)
		assert.Equal(mt, "ad-2", msgs[0].AdID)
		assert.Equal(mt, "carol", msgs[0].Counterpart("alice"))
	})
}

func TestUserRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("missing user maps to not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))

		_, err := repo.ByID(ctx, "ghost")
		require.ErrorIs(mt, err, domainuser.ErrNotFound)
	})

	mt.Run("duplicate email maps to email already used", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Save(ctx, &domainuser.User{ID: "u-2", Email: "Alice@Example.com"})
		require.ErrorIs(mt, err, domainuser.ErrEmailAlreadyUsed)
	})

	mt.Run("decodes roles", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u-1"},
			{Key: "email", Value: "alice@example.com"},
			{Key: "name", Value: "Alice"},
			{Key: "roles", Value: bson.A{"member"}},
		}))

		u, err := repo.ByEmail(ctx, " ALICE@example.com ")
		require.NoError(mt, err)
		assert.Equal(mt, "Alice", u.Name)
		assert.True(mt, u.HasRole(domainuser.RoleMember))
	})
}

func TestIdempotencyStoreReserve(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("first reservation wins", func(mt *mtest.T) {
		store := NewIdempotencyStore(mt.DB, time.Hour)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		ok, err := store.Reserve(ctx, "ledger.transfer:alice:k1")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("duplicate reservation is refused", func(mt *mtest.T) {
		store := NewIdempotencyStore(mt.DB, time.Hour)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		ok, err := store.Reserve(ctx, "ledger.transfer:alice:k1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestLedgerStoreDeleteAccount(t *testing.T) {
	mt := newMock(t)

	mt.Run("removes the account", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, store.DeleteAccount(context.Background(), "alice"))
	})

	mt.Run("missing account", func(mt *mtest.T) {
		store := NewLedgerStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		require.ErrorIs(mt, store.DeleteAccount(context.Background(), "ghost"), ledger.ErrAccountNotFound)
	})
}
