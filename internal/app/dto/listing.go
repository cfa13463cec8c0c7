package dto

import (
	"time"

	domainlistings "rentspot/internal/domain/listings"
)

type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Location    string    `json:"location,omitempty"`
	PricePerDay int64     `json:"price_per_day"`
	Currency    string    `json:"currency"`
	Photos      []string  `json:"photos"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	photos := append([]string{}, l.Photos...)
	return Listing{
		ID:          string(l.ID),
		OwnerID:     string(l.Owner),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Location:    l.Location,
		PricePerDay: l.PricePerDay.Amount,
		Currency:    l.PricePerDay.Currency,
		Photos:      photos,
		State:       string(l.State),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
