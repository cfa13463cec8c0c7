package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentspot/internal/app/outbox"
	domain "rentspot/internal/domain/ledger"
)

const (
	DescriptionTransfer = "Points transfer"
)

// NameLookup resolves display names for the public balance view.
type NameLookup interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Service struct {
	Store   domain.Store
	Names   NameLookup
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Clock   func() time.Time
	IDs     func() string
}

type TransferResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
}

type DebitResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
}

type PublicBalance struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Balance int64  `json:"points"`
}

// Grant opens the account of a new user with amount points.
func (s *Service) Grant(ctx context.Context, userID string, amount int64, description string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == domain.SystemAccount {
		return 0, domain.ErrUnknownUser
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	now := s.now()
	tx, err := domain.NewTransaction(domain.TransactionParams{
		ID:          s.newID(),
		FromUserID:  domain.SystemAccount,
		ToUserID:    userID,
		Amount:      amount,
		Kind:        domain.KindGrant,
		Description: description,
		CreatedAt:   now,
	})
	if err != nil {
		return 0, err
	}
	if err := s.Store.CreateAccount(ctx, domain.Account{UserID: userID, Balance: amount, CreatedAt: now, UpdatedAt: now}); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: create account: %v", domain.ErrPersistence, err)
	}
	if err := s.Store.AppendTransaction(ctx, tx); err != nil {
		// without its grant entry the account must not exist, or a retry
		// would hit ErrAccountExists and the grant would be lost
		s.compensate(ctx, "grant", func(ctx context.Context) error {
			return s.Store.DeleteAccount(ctx, userID)
		})
		return 0, fmt.Errorf("%w: append grant: %v", domain.ErrPersistence, err)
	}
	s.recordEvent(ctx, tx)
	grantsTotal.Inc()
	s.logger().Info("points granted", "user_id", userID, "amount", amount, "transaction_id", tx.ID)
	return amount, nil
}

// Debit charges userID for a paid action. The balance check and decrement are one store operation.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, description string) (DebitResult, error) {
	if amount <= 0 {
		return DebitResult{}, domain.ErrInvalidAmount
	}
	now := s.now()
	balance, err := s.Store.DebitIfSufficient(ctx, userID, amount, now)
	if err != nil {
		return DebitResult{}, s.mapDebitError(err, domain.ErrUnknownUser)
	}
	tx, err := domain.NewTransaction(domain.TransactionParams{
		ID:          s.newID(),
		FromUserID:  userID,
		ToUserID:    domain.SystemAccount,
		Amount:      amount,
		Kind:        domain.KindDebit,
		Description: description,
		CreatedAt:   now,
	})
	if err == nil {
		err = s.Store.AppendTransaction(ctx, tx)
	}
	if err != nil {
		s.compensate(ctx, "debit", func(ctx context.Context) error {
			_, cerr := s.Store.Credit(ctx, userID, amount, s.now())
			return cerr
		})
		return DebitResult{}, fmt.Errorf("%w: append debit: %v", domain.ErrPersistence, err)
	}
	s.recordEvent(ctx, tx)
	debitsTotal.Inc()
	s.logger().Info("points debited", "user_id", userID, "amount", amount, "transaction_id", tx.ID)
	return DebitResult{TransactionID: tx.ID, NewBalance: balance}, nil
}

// Transfer moves amount points from one user to another.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, description string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, s.rejected(domain.ErrInvalidAmount)
	}
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" || toUserID == domain.SystemAccount {
		return TransferResult{}, s.rejected(domain.ErrUnknownRecipient)
	}
	if _, err := s.Store.Account(ctx, toUserID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return TransferResult{}, s.rejected(domain.ErrUnknownRecipient)
		}
		return TransferResult{}, fmt.Errorf("%w: load recipient: %v", domain.ErrPersistence, err)
	}
	if toUserID == fromUserID {
		return TransferResult{}, s.rejected(domain.ErrSelfTransfer)
	}
	if strings.TrimSpace(description) == "" {
		description = DescriptionTransfer
	}

	now := s.now()
	balance, err := s.Store.DebitIfSufficient(ctx, fromUserID, amount, now)
	if err != nil {
		return TransferResult{}, s.rejected(s.mapDebitError(err, domain.ErrUnknownUser))
	}
	if _, err := s.Store.Credit(ctx, toUserID, amount, now); err != nil {
		s.compensate(ctx, "transfer credit", func(ctx context.Context) error {
			_, cerr := s.Store.Credit(ctx, fromUserID, amount, s.now())
			return cerr
		})
		return TransferResult{}, fmt.Errorf("%w: credit recipient: %v", domain.ErrPersistence, err)
	}
	tx, err := domain.NewTransaction(domain.TransactionParams{
		ID:          s.newID(),
		FromUserID:  fromUserID,
		ToUserID:    toUserID,
		Amount:      amount,
		Kind:        domain.KindTransfer,
		Description: description,
		CreatedAt:   now,
	})
	if err == nil {
		err = s.Store.AppendTransaction(ctx, tx)
	}
	if err != nil {
		s.compensate(ctx, "transfer log", func(ctx context.Context) error {
			if _, cerr := s.Store.DebitIfSufficient(ctx, toUserID, amount, s.now()); cerr != nil {
				return cerr
			}
			_, cerr := s.Store.Credit(ctx, fromUserID, amount, s.now())
			return cerr
		})
		return TransferResult{}, fmt.Errorf("%w: append transfer: %v", domain.ErrPersistence, err)
	}
	s.recordEvent(ctx, tx)
	transfersTotal.Inc()
	transferredPoints.Add(float64(amount))
	s.logger().Info("points transferred", "from_user_id", fromUserID, "to_user_id", toUserID, "amount", amount, "transaction_id", tx.ID)
	return TransferResult{TransactionID: tx.ID, NewBalance: balance}, nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	acc, err := s.Store.Account(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return 0, domain.ErrUnknownUser
		}
		return 0, fmt.Errorf("%w: load account: %v", domain.ErrPersistence, err)
	}
	return acc.Balance, nil
}

// GetPublicBalance is the balance plus display name any authenticated user may read.
func (s *Service) GetPublicBalance(ctx context.Context, userID string) (PublicBalance, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return PublicBalance{}, err
	}
	out := PublicBalance{UserID: userID, Balance: balance}
	if s.Names != nil {
		name, err := s.Names.DisplayName(ctx, userID)
		if err != nil {
			s.logger().Warn("display name lookup failed", "user_id", userID, "error", err)
		}
		out.Name = name
	}
	return out, nil
}

// ListTransactions returns every log entry involving userID, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.Store.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", domain.ErrPersistence, err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *Service) mapDebitError(err error, notFound error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return domain.ErrInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotFound):
		return notFound
	default:
		return fmt.Errorf("%w: debit: %v", domain.ErrPersistence, err)
	}
}

func (s *Service) rejected(err error) error {
	if !errors.Is(err, domain.ErrPersistence) {
		transfersRejected.WithLabelValues(rejectReason(err)).Inc()
	}
	return err
}

// compensate reverts an already applied leg. A failed compensation leaves the
// ledger inconsistent and is logged at error level for manual repair.
func (s *Service) compensate(ctx context.Context, step string, undo func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	if err := undo(ctx); err != nil {
		compensationFailures.Inc()
		s.logger().Error("ledger compensation failed", "step", step, "error", err)
		return
	}
	s.logger().Warn("ledger operation compensated", "step", step)
}

func (s *Service) recordEvent(ctx context.Context, tx domain.Transaction) {
	if s.Outbox == nil {
		return
	}
	if err := outbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, domain.NewTransactionRecorded(tx)); err != nil {
		s.logger().Warn("ledger event not recorded", "transaction_id", tx.ID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.IDs != nil {
		return s.IDs()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrUnknownRecipient):
		return "unknown_recipient"
	case errors.Is(err, domain.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrUnknownUser):
		return "unknown_user"
	default:
		return "other"
	}
}
