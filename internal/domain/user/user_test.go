package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserDefaults(t *testing.T) {
	u, err := NewUser(CreateParams{ID: "u1", Email: " Alice@Example.com ", Name: "Alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, []Role{RoleMember}, u.Roles)
	assert.False(t, u.CreatedAt.IsZero())
	assert.True(t, u.HasRole("MEMBER"))
}

func TestNewUserRejectsBadInput(t *testing.T) {
	_, err := NewUser(CreateParams{ID: "u1", Email: "a@b.c", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h", Avatar: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidAvatar)

	_, err = NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h", Roles: []Role{"host"}})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUpdateProfile(t *testing.T) {
	u, err := NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h"})
	require.NoError(t, err)
	later := u.CreatedAt.Add(time.Hour)
	require.NoError(t, u.UpdateProfile("Anna", "https://cdn.example.com/a.png", later))
	assert.Equal(t, "Anna", u.Name)
	assert.Equal(t, later, u.UpdatedAt)
	assert.ErrorIs(t, u.UpdateProfile(" ", "", later), ErrNameRequired)
}

func TestNewUserValidatesEmailAndName(t *testing.T) {
	_, err := NewUser(CreateParams{ID: "u1", Email: "not-an-email", Name: "A", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: strings.Repeat("я", MaxNameLength+1), PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrNameTooLong)

	u, err := NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: "  Anna   Petrova ", PasswordHash: "h", Roles: []Role{"Moderator", "moderator"}})
	require.NoError(t, err)
	assert.Equal(t, "Anna Petrova", u.Name)
	assert.Equal(t, []Role{RoleModerator}, u.Roles)

	_, err = NewUser(CreateParams{ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h", Avatar: "ftp://cdn/a.png"})
	assert.ErrorIs(t, err, ErrInvalidAvatar)
}

func TestSetBlockedAndDisplayName(t *testing.T) {
	u := &User{Email: "olga@example.com"}
	assert.Equal(t, "olga", u.DisplayName())

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	u.SetBlocked(true, at)
	assert.True(t, u.Blocked)
	assert.Equal(t, at, u.UpdatedAt)
	u.SetBlocked(true, at.Add(time.Hour))
	assert.Equal(t, at, u.UpdatedAt)
}
