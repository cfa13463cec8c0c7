package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentspot/internal/domain/ledger"
)

// LedgerStore keeps accounts and the transaction log in memory. One mutex
// makes every balance update atomic.
type LedgerStore struct {
	mu       sync.Mutex
	accounts map[string]ledger.Account
	log      []ledger.Transaction
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{accounts: make(map[string]ledger.Account)}
}

func (s *LedgerStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.UserID]; ok {
		return ledger.ErrAccountExists
	}
	s.accounts[account.UserID] = account
	return nil
}

func (s *LedgerStore) DeleteAccount(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(s.accounts, userID)
	return nil
}

func (s *LedgerStore) Account(ctx context.Context, userID string) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acc, nil
}

func (s *LedgerStore) DebitIfSufficient(ctx context.Context, userID string, amount int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	if acc.Balance < amount {
		return acc.Balance, ledger.ErrInsufficientFunds
	}
	acc.Balance -= amount
	acc.UpdatedAt = at
	s.accounts[userID] = acc
	return acc.Balance, nil
}

func (s *LedgerStore) Credit(ctx context.Context, userID string, amount int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	acc.Balance += amount
	acc.UpdatedAt = at
	s.accounts[userID] = acc
	return acc.Balance, nil
}

func (s *LedgerStore) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, tx)
	return nil
}

func (s *LedgerStore) Transactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	s.mu.Lock()
	out := make([]ledger.Transaction, 0)
	for _, tx := range s.log {
		if tx.Involves(userID) {
			out = append(out, tx)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var _ ledger.Store = (*LedgerStore)(nil)
