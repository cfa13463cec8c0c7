package memory

import (
	"context"
	"strings"
	"sync"

	domainuser "rentspot/internal/domain/user"
)

// UserRepository keeps users in memory. Emails are unique case-insensitively.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[domainuser.ID]domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[domainuser.ID]domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return copyUser(r.users[id]), nil
}

// Save inserts or replaces the user. Changing the email releases the old one.
func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	key := emailKey(u.Email)
	if key == "" {
		return domainuser.ErrEmailRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byEmail[key]; taken && owner != u.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	if prev, ok := r.users[u.ID]; ok {
		if prevKey := emailKey(prev.Email); prevKey != key {
			delete(r.byEmail, prevKey)
		}
	}
	r.byEmail[key] = u.ID
	r.users[u.ID] = *copyUser(*u)
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id domainuser.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domainuser.ErrNotFound
	}
	delete(r.byEmail, emailKey(u.Email))
	delete(r.users, id)
	return nil
}

func copyUser(u domainuser.User) *domainuser.User {
	u.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &u
}

var _ domainuser.Repository = (*UserRepository)(nil)
