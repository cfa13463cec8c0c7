package ledger

import (
	"time"

	"rentspot/internal/domain/shared/events"
)

const (
	EventPointsGranted     = "ledger.points_granted"
	EventPointsDebited     = "ledger.points_debited"
	EventPointsTransferred = "ledger.points_transferred"
)

// TransactionRecorded is published after a transaction lands in the log.
type TransactionRecorded struct {
	events.BaseEvent `json:"-"`
	TransactionID    string    `json:"transaction_id"`
	FromUserID       string    `json:"from_user_id"`
	ToUserID         string    `json:"to_user_id"`
	Amount           int64     `json:"amount"`
	Kind             Kind      `json:"kind"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewTransactionRecorded(tx Transaction) TransactionRecorded {
	name := EventPointsTransferred
	aggregate := tx.FromUserID
	switch tx.Kind {
	case KindGrant:
		name = EventPointsGranted
		aggregate = tx.ToUserID
	case KindDebit:
		name = EventPointsDebited
	}
	return TransactionRecorded{
		BaseEvent:     events.BaseEvent{Name: name, Aggregate: aggregate, Time: tx.CreatedAt},
		TransactionID: tx.ID,
		FromUserID:    tx.FromUserID,
		ToUserID:      tx.ToUserID,
		Amount:        tx.Amount,
		Kind:          tx.Kind,
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt,
	}
}
