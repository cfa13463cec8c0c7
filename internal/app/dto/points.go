package dto

import (
	"time"

	domainledger "rentspot/internal/domain/ledger"
)

type Balance struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// Transaction is one ledger entry seen from the requesting user's side.
type Transaction struct {
	ID          string    `json:"id"`
	FromUserID  string    `json:"from_user_id"`
	ToUserID    string    `json:"to_user_id"`
	Amount      int64     `json:"amount"`
	Delta       int64     `json:"delta"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type TransactionList struct {
	Items []Transaction `json:"items"`
}

func MapTransactions(userID string, txs []domainledger.Transaction) TransactionList {
	out := TransactionList{Items: make([]Transaction, 0, len(txs))}
	for _, tx := range txs {
		out.Items = append(out.Items, Transaction{
			ID:          tx.ID,
			FromUserID:  tx.FromUserID,
			ToUserID:    tx.ToUserID,
			Amount:      tx.Amount,
			Delta:       tx.Delta(userID),
			Kind:        string(tx.Kind),
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return out
}
