package dto

import (
	"time"

	domainuser "rentspot/internal/domain/user"
)

// UserProfile is the owner's view of an account, points included.
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar,omitempty"`
	Roles       []string  `json:"roles"`
	Points      int64     `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

func MapUserProfile(u *domainuser.User, points int64) UserProfile {
	if u == nil {
		return UserProfile{Roles: []string{}}
	}
	p := UserProfile{
		ID:          string(u.ID),
		Email:       u.Email,
		Name:        u.Name,
		DisplayName: u.DisplayName(),
		Avatar:      u.Avatar,
		Roles:       make([]string, len(u.Roles)),
		Points:      points,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	for i, r := range u.Roles {
		p.Roles[i] = string(r)
	}
	return p
}

func NewAuthResponse(u *domainuser.User, token string, points int64) AuthResponse {
	return AuthResponse{Token: token, User: MapUserProfile(u, points)}
}
