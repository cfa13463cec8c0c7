package memory

import (
	"context"
	"sync"

	"rentspot/internal/domain/listings"
)

// ListingRepository keeps ads in memory.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[listings.ListingID]listings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[listings.ListingID]listings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, listings.ErrNotFound
	}
	return cloneListing(l), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *listings.Listing) error {
	if l == nil || l.ID == "" {
		return listings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *cloneListing(*l)
	r.items[l.ID] = stored
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id listings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func cloneListing(l listings.Listing) *listings.Listing {
	l.Photos = append([]string(nil), l.Photos...)
	l.ClearEvents()
	return &l
}

var _ listings.Repository = (*ListingRepository)(nil)

func (r *ListingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
