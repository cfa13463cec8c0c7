package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/outbox"
	"rentspot/internal/app/queries"
	"rentspot/internal/domain/listings"
	"rentspot/internal/domain/shared/money"
)

const (
	PublishListingKey = "listings.publish"
	GetListingKey     = "listings.get"

	FeeDescription = "Ad posting fee"
)

// Charger debits the posting fee from the owner's points.
type Charger interface {
	Debit(ctx context.Context, userID string, amount int64, description string) (ChargeResult, error)
}

type ChargeResult struct {
	TransactionID string
	NewBalance    int64
}

type PublishListingCommand struct {
	OwnerID     string   `validate:"required"`
	Title       string   `validate:"required,max=120"`
	Description string   `validate:"max=5000"`
	Category    string   `validate:"required,max=64"`
	Location    string   `validate:"max=200"`
	PricePerDay int64    `validate:"gte=0"`
	Currency    string   `validate:"omitempty,len=3"`
	Photos      []string `validate:"max=10,dive,url"`
	RequestKey  string   `validate:"max=128"`
}

func (PublishListingCommand) Key() string { return PublishListingKey }

func (c PublishListingCommand) ActorID() string { return c.OwnerID }

func (c PublishListingCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return PublishListingKey + ":" + c.OwnerID + ":" + c.RequestKey
}

func (PublishListingCommand) ResultPrototype() any { return &PublishResult{} }

type PublishResult struct {
	ListingID     string `json:"listing_id"`
	State         string `json:"state"`
	TransactionID string `json:"transaction_id"`
	PointsLeft    int64  `json:"points_left"`
}

// PublishListingHandler stores a draft, charges the posting fee and submits
// the ad for moderation. A failed charge removes the draft.
type PublishListingHandler struct {
	Listings listings.Repository
	Charger  Charger
	Fee      int64
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
}

func (h *PublishListingHandler) Handle(ctx context.Context, cmd PublishListingCommand) (PublishResult, error) {
	price, err := money.New(cmd.PricePerDay, cmd.Currency)
	if err != nil {
		return PublishResult{}, err
	}
	now := time.Now()
	draft, err := listings.NewDraft(listings.CreateListingParams{
		ID:          listings.ListingID(uuid.NewString()),
		Owner:       listings.OwnerID(cmd.OwnerID),
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    cmd.Category,
		Location:    cmd.Location,
		PricePerDay: price,
		Photos:      cmd.Photos,
		Now:         now,
	})
	if err != nil {
		return PublishResult{}, err
	}
	if err := h.Listings.Save(ctx, draft); err != nil {
		return PublishResult{}, fmt.Errorf("listings: save draft: %w", err)
	}

	var charge ChargeResult
	if h.Fee > 0 {
		charge, err = h.Charger.Debit(ctx, cmd.OwnerID, h.Fee, FeeDescription)
		if err != nil {
			if delErr := h.Listings.Delete(context.WithoutCancel(ctx), draft.ID); delErr != nil {
				h.logger().Error("draft cleanup failed", "listing_id", draft.ID, "error", delErr)
				return PublishResult{}, errors.Join(err, delErr)
			}
			return PublishResult{}, err
		}
	}

	if err := draft.Submit(time.Now()); err != nil {
		return PublishResult{}, err
	}
	if err := h.Listings.Save(ctx, draft); err != nil {
		h.logger().Error("listing paid but not submitted", "listing_id", draft.ID, "transaction_id", charge.TransactionID, "error", err)
		return PublishResult{}, fmt.Errorf("listings: submit: %w", err)
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, draft.PendingEvents()...); err != nil {
		h.logger().Warn("listing events not recorded", "listing_id", draft.ID, "error", err)
	}
	draft.ClearEvents()
	h.logger().Info("listing submitted", "listing_id", draft.ID, "owner_id", cmd.OwnerID, "fee", h.Fee)
	return PublishResult{
		ListingID:     string(draft.ID),
		State:         string(draft.State),
		TransactionID: charge.TransactionID,
		PointsLeft:    charge.NewBalance,
	}, nil
}

func (h *PublishListingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type GetListingQuery struct {
	ID string `validate:"required"`
}

func (GetListingQuery) Key() string { return GetListingKey }

type GetListingHandler struct {
	Listings listings.Repository
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (*listings.Listing, error) {
	return h.Listings.ByID(ctx, listings.ListingID(q.ID))
}

// Register wires the listing handlers into the buses.
func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, publish *PublishListingHandler) {
	commands.RegisterHandler[PublishListingCommand, PublishResult](cmds, PublishListingKey, publish)
	queries.RegisterHandler[GetListingQuery, *listings.Listing](qs, GetListingKey, &GetListingHandler{Listings: publish.Listings})
}
