package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentspot/internal/domain/ledger"
)

// LedgerStore keeps balances in ledger_accounts and the log in ledger_transactions.
// Balance changes are single-document $inc updates, so they are atomic without
// a multi-document transaction.
type LedgerStore struct {
	accounts     *mongo.Collection
	transactions *mongo.Collection
}

func NewLedgerStore(db *mongo.Database) *LedgerStore {
	return &LedgerStore{
		accounts:     db.Collection("ledger_accounts"),
		transactions: db.Collection("ledger_transactions"),
	}
}

func (s *LedgerStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "to_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *LedgerStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	_, err := s.accounts.InsertOne(ctx, accountDocument{
		UserID:    account.UserID,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAccountExists
	}
	return err
}

func (s *LedgerStore) DeleteAccount(ctx context.Context, userID string) error {
	res, err := s.accounts.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *LedgerStore) Account(ctx context.Context, userID string) (ledger.Account, error) {
	var doc accountDocument
	if err := s.accounts.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}
	return doc.toDomain(), nil
}

// DebitIfSufficient decrements only when balance >= amount. When nothing
// matches, a follow-up read tells a missing account from a short balance.
func (s *LedgerStore) DebitIfSufficient(ctx context.Context, userID string, amount int64, at time.Time) (int64, error) {
	filter := bson.M{"_id": userID, "balance": bson.M{"$gte": amount}}
	update := bson.M{
		"$inc": bson.M{"balance": -amount},
		"$set": bson.M{"updated_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDocument
	err := s.accounts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.Balance, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, err
	}
	acc, err := s.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, ledger.ErrInsufficientFunds
}

func (s *LedgerStore) Credit(ctx context.Context, userID string, amount int64, at time.Time) (int64, error) {
	update := bson.M{
		"$inc": bson.M{"balance": amount},
		"$set": bson.M{"updated_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDocument
	if err := s.accounts.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ledger.ErrAccountNotFound
		}
		return 0, err
	}
	return doc.Balance, nil
}

func (s *LedgerStore) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := s.transactions.InsertOne(ctx, transactionDocument{
		ID:          tx.ID,
		FromUserID:  tx.FromUserID,
		ToUserID:    tx.ToUserID,
		Amount:      tx.Amount,
		Kind:        string(tx.Kind),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	})
	return err
}

func (s *LedgerStore) Transactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	filter := bson.M{"$or": bson.A{bson.M{"from_user_id": userID}, bson.M{"to_user_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []transactionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]ledger.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

type accountDocument struct {
	UserID    string    `bson:"_id"`
	Balance   int64     `bson:"balance"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d accountDocument) toDomain() ledger.Account {
	return ledger.Account{UserID: d.UserID, Balance: d.Balance, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type transactionDocument struct {
	ID          string    `bson:"_id"`
	FromUserID  string    `bson:"from_user_id"`
	ToUserID    string    `bson:"to_user_id"`
	Amount      int64     `bson:"amount"`
	Kind        string    `bson:"kind"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d transactionDocument) toDomain() ledger.Transaction {
	return ledger.Transaction{
		ID:          d.ID,
		FromUserID:  d.FromUserID,
		ToUserID:    d.ToUserID,
		Amount:      d.Amount,
		Kind:        ledger.Kind(d.Kind),
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

var _ ledger.Store = (*LedgerStore)(nil)
