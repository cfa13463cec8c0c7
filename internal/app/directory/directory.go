// Package directory adapts user and listing repositories to the read-only
// views chat and the ledger need.
package directory

import (
	"context"

	"rentspot/internal/domain/chat"
	"rentspot/internal/domain/listings"
	"rentspot/internal/domain/user"
)

type Users struct {
	Repo user.Repository
}

func (d Users) Profile(ctx context.Context, userID string) (chat.Profile, error) {
	u, err := d.Repo.ByID(ctx, user.ID(userID))
	if err != nil {
		return chat.Profile{}, err
	}
	return chat.Profile{UserID: string(u.ID), DisplayName: u.DisplayName(), Avatar: u.Avatar}, nil
}

func (d Users) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := d.Repo.ByID(ctx, user.ID(userID))
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

type Listings struct {
	Repo listings.Repository
}

func (d Listings) Listing(ctx context.Context, adID string) (chat.ListingSummary, error) {
	l, err := d.Repo.ByID(ctx, listings.ListingID(adID))
	if err != nil {
		return chat.ListingSummary{}, err
	}
	return chat.ListingSummary{AdID: string(l.ID), Title: l.Title, PrimaryImage: l.PrimaryPhoto()}, nil
}
