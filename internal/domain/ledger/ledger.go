package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidAmount      = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrUnknownRecipient   = errors.New("ledger: unknown recipient")
	ErrSelfTransfer       = errors.New("ledger: cannot transfer to yourself")
	ErrUnknownUser        = errors.New("ledger: unknown user")
	ErrAccountExists      = errors.New("ledger: account already exists")
	ErrAccountNotFound    = errors.New("ledger: account not found")
	ErrPersistence        = errors.New("ledger: persistence failure")
	ErrInvalidTransaction = errors.New("ledger: invalid transaction")
)

// SystemAccount is the counterparty of grants and debits. It never holds a balance.
const SystemAccount = "system"

type Kind string

const (
	KindGrant    Kind = "grant"
	KindTransfer Kind = "transfer"
	KindDebit    Kind = "debit"
)

func (k Kind) Valid() bool {
	switch k {
	case KindGrant, KindTransfer, KindDebit:
		return true
	default:
		return false
	}
}

type Account struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Transaction struct {
	ID          string
	FromUserID  string
	ToUserID    string
	Amount      int64
	Kind        Kind
	Description string
	CreatedAt   time.Time
}

type TransactionParams struct {
	ID          string
	FromUserID  string
	ToUserID    string
	Amount      int64
	Kind        Kind
	Description string
	CreatedAt   time.Time
}

// NewTransaction builds an immutable log entry and checks that the parties match the kind.
func NewTransaction(params TransactionParams) (Transaction, error) {
	id := strings.TrimSpace(params.ID)
	from := strings.TrimSpace(params.FromUserID)
	to := strings.TrimSpace(params.ToUserID)
	if id == "" || from == "" || to == "" {
		return Transaction{}, ErrInvalidTransaction
	}
	if params.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	switch params.Kind {
	case KindGrant:
		if from != SystemAccount || to == SystemAccount {
			return Transaction{}, ErrInvalidTransaction
		}
	case KindDebit:
		if to != SystemAccount || from == SystemAccount {
			return Transaction{}, ErrInvalidTransaction
		}
	case KindTransfer:
		if from == SystemAccount || to == SystemAccount {
			return Transaction{}, ErrInvalidTransaction
		}
		if from == to {
			return Transaction{}, ErrSelfTransfer
		}
	default:
		return Transaction{}, ErrInvalidTransaction
	}
	created := params.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Transaction{
		ID:          id,
		FromUserID:  from,
		ToUserID:    to,
		Amount:      params.Amount,
		Kind:        params.Kind,
		Description: strings.TrimSpace(params.Description),
		CreatedAt:   created.UTC(),
	}, nil
}

// Delta is the signed effect of the transaction on userID's balance.
func (t Transaction) Delta(userID string) int64 {
	var delta int64
	if t.ToUserID == userID {
		delta += t.Amount
	}
	if t.FromUserID == userID {
		delta -= t.Amount
	}
	return delta
}

func (t Transaction) Involves(userID string) bool {
	return t.FromUserID == userID || t.ToUserID == userID
}

// Replay sums the deltas of txs for userID. For a consistent ledger it equals the stored balance.
func Replay(userID string, txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Delta(userID)
	}
	return total
}

// Store persists accounts and the append-only transaction log.
// DebitIfSufficient must be a single atomic conditional update.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	// DeleteAccount undoes a CreateAccount whose grant never reached the log.
	DeleteAccount(ctx context.Context, userID string) error
	Account(ctx context.Context, userID string) (Account, error)
	DebitIfSufficient(ctx context.Context, userID string, amount int64, at time.Time) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, at time.Time) (int64, error)
	AppendTransaction(ctx context.Context, tx Transaction) error
	Transactions(ctx context.Context, userID string) ([]Transaction, error)
}
