package listings

import (
	"time"
)

type ListingCreatedEvent struct {
	ListingID ListingID `json:"listing_id"`
	OwnerID   OwnerID   `json:"owner_id"`
	At        time.Time `json:"at"`
}

func (e ListingCreatedEvent) EventName() string     { return "listing.created" }
func (e ListingCreatedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreatedEvent) OccurredAt() time.Time { return e.At }

type ListingSubmittedEvent struct {
	ListingID ListingID `json:"listing_id"`
	OwnerID   OwnerID   `json:"owner_id"`
	At        time.Time `json:"at"`
}

func (e ListingSubmittedEvent) EventName() string     { return "listing.submitted" }
func (e ListingSubmittedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingSubmittedEvent) OccurredAt() time.Time { return e.At }
