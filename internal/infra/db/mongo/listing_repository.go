package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentspot/internal/domain/listings"
	"rentspot/internal/domain/shared/money"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("ads")}
}

func (r *ListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "category", Value: 1}}},
	})
	return err
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *listings.Listing) error {
	if l == nil || l.ID == "" {
		return listings.ErrIDRequired
	}
	doc := newListingDocument(l)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id listings.ListingID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return err
}

type listingDocument struct {
	ID          string   `bson:"_id"`
	OwnerID     string   `bson:"owner_id"`
	Title       string   `bson:"title"`
	Description string   `bson:"description"`
	Category    string   `bson:"category"`
	Location    string   `bson:"location"`
	PriceAmount int64    `bson:"price_per_day"`
	Currency    string   `bson:"currency"`
	Photos      []string `bson:"photos"`
	State       string   `bson:"state"`
	CreatedAt   int64    `bson:"created_at"`
	UpdatedAt   int64    `bson:"updated_at"`
}

func newListingDocument(l *listings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		OwnerID:     string(l.Owner),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Location:    l.Location,
		PriceAmount: l.PricePerDay.Amount,
		Currency:    l.PricePerDay.Currency,
		Photos:      append([]string(nil), l.Photos...),
		State:       string(l.State),
		CreatedAt:   l.CreatedAt.UnixMilli(),
		UpdatedAt:   l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toDomain() *listings.Listing {
	return &listings.Listing{
		ID:          listings.ListingID(d.ID),
		Owner:       listings.OwnerID(d.OwnerID),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    d.Location,
		PricePerDay: money.Money{Amount: d.PriceAmount, Currency: d.Currency},
		Photos:      d.Photos,
		State:       listings.ListingState(d.State),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}

var _ listings.Repository = (*ListingRepository)(nil)
