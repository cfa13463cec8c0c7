package user

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrIDRequired          = errors.New("user: id is required")
	ErrEmailRequired       = errors.New("user: email is required")
	ErrInvalidEmail        = errors.New("user: email is malformed")
	ErrPasswordHashMissing = errors.New("user: password hash is required")
	ErrNameRequired        = errors.New("user: name is required")
	ErrNameTooLong         = errors.New("user: name is too long")
	ErrInvalidRole         = errors.New("user: invalid role")
	ErrInvalidAvatar       = errors.New("user: avatar must be an http(s) url")
	ErrEmailAlreadyUsed    = errors.New("user: email already used")
	ErrNotFound            = errors.New("user: not found")
)

const MaxNameLength = 80

type ID string

type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var knownRoles = map[Role]bool{RoleMember: true, RoleModerator: true, RoleAdmin: true}

// User is a marketplace account: it posts ads, chats about them and holds a
// points balance in the ledger under the same ID.
type User struct {
	ID           ID
	Email        string
	Name         string
	Avatar       string
	PasswordHash string
	Roles        []Role
	Blocked      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id ID) error
}

type CreateParams struct {
	ID           ID
	Email        string
	Name         string
	Avatar       string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

func NewUser(p CreateParams) (*User, error) {
	if strings.TrimSpace(string(p.ID)) == "" {
		return nil, ErrIDRequired
	}
	email, err := parseEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.PasswordHash) == "" {
		return nil, ErrPasswordHashMissing
	}
	name, err := parseName(p.Name)
	if err != nil {
		return nil, err
	}
	avatar, err := parseAvatar(p.Avatar)
	if err != nil {
		return nil, err
	}
	roles := []Role{RoleMember}
	if len(p.Roles) > 0 {
		if roles, err = parseRoles(p.Roles); err != nil {
			return nil, err
		}
	}
	at := p.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	return &User{
		ID:           ID(strings.TrimSpace(string(p.ID))),
		Email:        email,
		Name:         name,
		Avatar:       avatar,
		PasswordHash: p.PasswordHash,
		Roles:        roles,
		CreatedAt:    at,
		UpdatedAt:    at,
	}, nil
}

// UpdateProfile replaces the public part of the account.
func (u *User) UpdateProfile(name, avatar string, at time.Time) error {
	n, err := parseName(name)
	if err != nil {
		return err
	}
	a, err := parseAvatar(avatar)
	if err != nil {
		return err
	}
	u.Name, u.Avatar = n, a
	u.UpdatedAt = at.UTC()
	return nil
}

// SetBlocked blocks or unblocks the account. Blocked users cannot log in and
// their sessions stop resolving.
func (u *User) SetBlocked(blocked bool, at time.Time) {
	if u.Blocked == blocked {
		return
	}
	u.Blocked = blocked
	u.UpdatedAt = at.UTC()
}

func (u *User) HasRole(role Role) bool {
	role = Role(strings.ToLower(strings.TrimSpace(string(role))))
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DisplayName is the name shown to other users; accounts without one fall
// back to the local part of their email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

func parseEmail(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrInvalidEmail
	}
	return raw, nil
}

func parseName(raw string) (string, error) {
	raw = strings.Join(strings.Fields(raw), " ")
	switch {
	case raw == "":
		return "", ErrNameRequired
	case utf8.RuneCountInString(raw) > MaxNameLength:
		return "", ErrNameTooLong
	}
	return raw, nil
}

func parseAvatar(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidAvatar
	}
	return u.String(), nil
}

func parseRoles(in []Role) ([]Role, error) {
	out := make([]Role, 0, len(in))
	seen := make(map[Role]bool, len(in))
	for _, r := range in {
		r = Role(strings.ToLower(strings.TrimSpace(string(r))))
		if !knownRoles[r] {
			return nil, ErrInvalidRole
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}
