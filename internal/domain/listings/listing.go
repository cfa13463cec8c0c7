package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentspot/internal/domain/shared/events"
	"rentspot/internal/domain/shared/money"
)

var (
	ErrIDRequired     = errors.New("listings: id is required")
	ErrOwnerRequired  = errors.New("listings: owner is required")
	ErrTitleRequired  = errors.New("listings: title is required")
	ErrInvalidPrice   = errors.New("listings: price per day must be non-negative")
	ErrTooManyPhotos  = errors.New("listings: too many photos")
	ErrInvalidState   = errors.New("listings: invalid state transition")
	ErrNotFound       = errors.New("listings: not found")
	ErrCategoryNeeded = errors.New("listings: category is required")
)

const MaxPhotos = 10

type ListingID string
type OwnerID string

type ListingState string

const (
	ListingDraft    ListingState = "DRAFT"
	ListingPending  ListingState = "PENDING"
	ListingActive   ListingState = "ACTIVE"
	ListingRejected ListingState = "REJECTED"
)

// Listing is a classified ad for an item offered for rent.
type Listing struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	Description string
	Category    string
	Location    string
	PricePerDay money.Money
	Photos      []string
	State       ListingState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
}

type CreateListingParams struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	Description string
	Category    string
	Location    string
	PricePerDay money.Money
	Photos      []string
	Now         time.Time
}

// NewDraft validates the input and returns an unpublished listing.
func NewDraft(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	category := strings.TrimSpace(params.Category)
	if category == "" {
		return nil, ErrCategoryNeeded
	}
	if params.PricePerDay.Amount < 0 {
		return nil, ErrInvalidPrice
	}
	photos := compactPhotos(params.Photos)
	if len(photos) > MaxPhotos {
		return nil, ErrTooManyPhotos
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	l := &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Category:    category,
		Location:    strings.TrimSpace(params.Location),
		PricePerDay: params.PricePerDay,
		Photos:      photos,
		State:       ListingDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.Record(ListingCreatedEvent{ListingID: l.ID, OwnerID: l.Owner, At: now})
	return l, nil
}

// Submit moves a paid draft into moderation.
func (l *Listing) Submit(now time.Time) error {
	if l.State != ListingDraft {
		return ErrInvalidState
	}
	l.State = ListingPending
	l.touch(now)
	l.Record(ListingSubmittedEvent{ListingID: l.ID, OwnerID: l.Owner, At: l.UpdatedAt})
	return nil
}

func (l *Listing) PrimaryPhoto() string {
	if len(l.Photos) == 0 {
		return ""
	}
	return l.Photos[0]
}

func (l *Listing) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}

func compactPhotos(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
