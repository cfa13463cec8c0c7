package ledger

import (
	"context"
	"strings"

	domain "rentspot/internal/domain/ledger"
)

const (
	TransferPointsKey = "ledger.transfer_points"
	DebitPointsKey    = "ledger.debit_points"
)

type TransferPointsCommand struct {
	FromUserID  string `validate:"required"`
	ToUserID    string `validate:"required"`
	Amount      int64
	Description string `validate:"max=200"`
	RequestKey  string `validate:"max=128"`
}

func (TransferPointsCommand) Key() string { return TransferPointsKey }

func (c TransferPointsCommand) ActorID() string { return c.FromUserID }

func (c TransferPointsCommand) IdempotencyKey() string {
	return scopedKey(TransferPointsKey, c.FromUserID, c.RequestKey)
}

func (TransferPointsCommand) ResultPrototype() any { return &TransferResult{} }

type TransferPointsHandler struct {
	Ledger *Service
}

func (h *TransferPointsHandler) Handle(ctx context.Context, cmd TransferPointsCommand) (TransferResult, error) {
	return h.Ledger.Transfer(ctx, cmd.FromUserID, cmd.ToUserID, cmd.Amount, cmd.Description)
}

type DebitPointsCommand struct {
	UserID      string `validate:"required"`
	Amount      int64
	Description string `validate:"required,max=200"`
	RequestKey  string `validate:"max=128"`
}

func (DebitPointsCommand) Key() string { return DebitPointsKey }

func (c DebitPointsCommand) ActorID() string { return c.UserID }

func (c DebitPointsCommand) IdempotencyKey() string {
	return scopedKey(DebitPointsKey, c.UserID, c.RequestKey)
}

func (DebitPointsCommand) ResultPrototype() any { return &DebitResult{} }

type DebitPointsHandler struct {
	Ledger *Service
}

func (h *DebitPointsHandler) Handle(ctx context.Context, cmd DebitPointsCommand) (DebitResult, error) {
	return h.Ledger.Debit(ctx, cmd.UserID, cmd.Amount, cmd.Description)
}

// scopedKey keeps client supplied keys from colliding across users and commands.
func scopedKey(command, userID, requestKey string) string {
	requestKey = strings.TrimSpace(requestKey)
	if requestKey == "" {
		return ""
	}
	return command + ":" + userID + ":" + requestKey
}

const (
	GetBalanceKey       = "ledger.get_balance"
	GetPublicBalanceKey = "ledger.get_public_balance"
	ListTransactionsKey = "ledger.list_transactions"
)

type GetBalanceQuery struct {
	UserID string `validate:"required"`
}

func (GetBalanceQuery) Key() string { return GetBalanceKey }

type GetBalanceHandler struct {
	Ledger *Service
}

func (h *GetBalanceHandler) Handle(ctx context.Context, q GetBalanceQuery) (int64, error) {
	return h.Ledger.GetBalance(ctx, q.UserID)
}

type GetPublicBalanceQuery struct {
	UserID string `validate:"required"`
}

func (GetPublicBalanceQuery) Key() string { return GetPublicBalanceKey }

type GetPublicBalanceHandler struct {
	Ledger *Service
}

func (h *GetPublicBalanceHandler) Handle(ctx context.Context, q GetPublicBalanceQuery) (PublicBalance, error) {
	return h.Ledger.GetPublicBalance(ctx, q.UserID)
}

type ListTransactionsQuery struct {
	UserID string `validate:"required"`
}

func (ListTransactionsQuery) Key() string { return ListTransactionsKey }

type ListTransactionsHandler struct {
	Ledger *Service
}

func (h *ListTransactionsHandler) Handle(ctx context.Context, q ListTransactionsQuery) ([]domain.Transaction, error) {
	return h.Ledger.ListTransactions(ctx, q.UserID)
}
