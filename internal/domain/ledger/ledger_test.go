package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionValidatesParties(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		params TransactionParams
		err    error
	}{
		{"grant", TransactionParams{ID: "t1", FromUserID: SystemAccount, ToUserID: "u1", Amount: 1000, Kind: KindGrant}, nil},
		{"grant from user", TransactionParams{ID: "t1", FromUserID: "u2", ToUserID: "u1", Amount: 10, Kind: KindGrant}, ErrInvalidTransaction},
		{"debit", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: SystemAccount, Amount: 1, Kind: KindDebit}, nil},
		{"debit to user", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: "u2", Amount: 1, Kind: KindDebit}, ErrInvalidTransaction},
		{"transfer", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: "u2", Amount: 5, Kind: KindTransfer}, nil},
		{"self transfer", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: "u1", Amount: 5, Kind: KindTransfer}, ErrSelfTransfer},
		{"zero amount", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: "u2", Amount: 0, Kind: KindTransfer}, ErrInvalidAmount},
		{"unknown kind", TransactionParams{ID: "t1", FromUserID: "u1", ToUserID: "u2", Amount: 5, Kind: "refund"}, ErrInvalidTransaction},
		{"missing id", TransactionParams{FromUserID: "u1", ToUserID: "u2", Amount: 5, Kind: KindTransfer}, ErrInvalidTransaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.params.CreatedAt = now
			tx, err := NewTransaction(tc.params)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, now, tx.CreatedAt)
			assert.Equal(t, tc.params.Kind, tx.Kind)
		})
	}
}

func TestReplayMatchesBalances(t *testing.T) {
	txs := []Transaction{
		{ID: "1", FromUserID: SystemAccount, ToUserID: "alice", Amount: 1000, Kind: KindGrant},
		{ID: "2", FromUserID: SystemAccount, ToUserID: "bob", Amount: 1000, Kind: KindGrant},
		{ID: "3", FromUserID: "alice", ToUserID: "bob", Amount: 250, Kind: KindTransfer},
		{ID: "4", FromUserID: "bob", ToUserID: SystemAccount, Amount: 1, Kind: KindDebit},
	}
	assert.Equal(t, int64(750), Replay("alice", txs))
	assert.Equal(t, int64(1249), Replay("bob", txs))
	assert.Equal(t, int64(0), Replay("carol", txs))
	assert.True(t, txs[2].Involves("bob"))
	assert.False(t, txs[0].Involves("bob"))
}

func TestTransactionRecordedNaming(t *testing.T) {
	grant := NewTransactionRecorded(Transaction{ID: "1", FromUserID: SystemAccount, ToUserID: "alice", Amount: 10, Kind: KindGrant})
	assert.Equal(t, EventPointsGranted, grant.EventName())
	assert.Equal(t, "alice", grant.AggregateID())

	debit := NewTransactionRecorded(Transaction{ID: "2", FromUserID: "alice", ToUserID: SystemAccount, Amount: 1, Kind: KindDebit})
	assert.Equal(t, EventPointsDebited, debit.EventName())
	assert.Equal(t, "alice", debit.AggregateID())
}
