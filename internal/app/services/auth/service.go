package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domainauth "rentspot/internal/domain/auth"
	domainuser "rentspot/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
	ErrUserBlocked        = errors.New("auth: user blocked")
	errNotConfigured      = errors.New("auth: service not configured")
)

const (
	MinPasswordLength      = 8
	SignupGrantDescription = "Registration bonus"
	defaultSessionTTL      = 24 * time.Hour
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Rehasher is implemented by hashers that can tell an outdated hash apart.
type Rehasher interface {
	NeedsRehash(hash string) bool
}

type TokenGenerator interface {
	NewToken() (string, error)
}

// Accounts opens the points account of a freshly registered user and reads
// balances for login responses.
type Accounts interface {
	Grant(ctx context.Context, userID string, amount int64, description string) (int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// Service registers users, opens their points accounts and manages bearer
// sessions.
type Service struct {
	Users       domainuser.Repository
	Sessions    domainauth.SessionStore
	Passwords   PasswordHasher
	Tokens      TokenGenerator
	Accounts    Accounts
	SignupGrant int64
	SessionTTL  time.Duration
	Logger      *slog.Logger
}

type RegisterParams struct {
	Email    string
	Name     string
	Avatar   string
	Password string
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User   *domainuser.User
	Token  string
	Points int64
}

type ResolveResult struct {
	User    *domainuser.User
	Session *domainauth.Session
}

// Register creates the user, grants the signup points and opens a session.
// Profile fields are validated before the password is hashed.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(p.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        p.Email,
		Name:         p.Name,
		Avatar:       p.Avatar,
		PasswordHash: "pending",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Users.ByEmail(ctx, user.Email); err == nil {
		return nil, domainuser.ErrEmailAlreadyUsed
	} else if !errors.Is(err, domainuser.ErrNotFound) {
		return nil, err
	}
	if user.PasswordHash, err = s.Passwords.Hash(p.Password); err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, user); err != nil {
		return nil, err
	}

	var points int64
	if s.Accounts != nil && s.SignupGrant > 0 {
		if points, err = s.Accounts.Grant(ctx, string(user.ID), s.SignupGrant, SignupGrantDescription); err != nil {
			s.discardUser(ctx, user.ID)
			return nil, fmt.Errorf("auth: open points account: %w", err)
		}
	}
	token, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger().Info("user registered", "user_id", user.ID, "points", points)
	return &AuthResult{User: user, Token: token, Points: points}, nil
}

// discardUser removes a user whose registration did not complete, so the
// email can register again.
func (s *Service) discardUser(ctx context.Context, id domainuser.ID) {
	if err := s.Users.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.logger().Error("incomplete registration not removed", "user_id", id, "error", err)
	}
}

// Login checks the password and opens a new session. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, p LoginParams) (*AuthResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.ByEmail(ctx, email)
	switch {
	case errors.Is(err, domainuser.ErrNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	case user.Blocked:
		return nil, ErrUserBlocked
	}
	if err := s.Passwords.Compare(user.PasswordHash, p.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, user, p.Password)

	token, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	var points int64
	if s.Accounts != nil {
		if points, err = s.Accounts.GetBalance(ctx, string(user.ID)); err != nil {
			s.logger().Warn("balance lookup failed", "user_id", user.ID, "error", err)
		}
	}
	s.logger().Info("user authenticated", "user_id", user.ID)
	return &AuthResult{User: user, Token: token, Points: points}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.configured(); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, domainauth.Token(token))
}

// ResolveToken maps a bearer token to its live session and user. Sessions of
// deleted or blocked users are revoked on the way.
func (s *Service) ResolveToken(ctx context.Context, token string) (*ResolveResult, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainauth.ErrTokenRequired
	}
	session, err := s.Sessions.Get(ctx, domainauth.Token(token))
	if err != nil {
		return nil, err
	}
	user, err := s.Users.ByID(ctx, session.UserID)
	if errors.Is(err, domainuser.ErrNotFound) {
		_ = s.Sessions.Delete(ctx, session.Token)
		return nil, domainauth.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		if err := s.Sessions.DeleteByUser(ctx, user.ID); err != nil {
			s.logger().Warn("revoking sessions of blocked user failed", "user_id", user.ID, "error", err)
		}
		return nil, ErrUserBlocked
	}
	return &ResolveResult{User: user, Session: session}, nil
}

func (s *Service) issueSession(ctx context.Context, user *domainuser.User) (string, error) {
	token, err := s.Tokens.NewToken()
	if err != nil {
		return "", err
	}
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	session, err := domainauth.NewSession(domainauth.Token(token), user.ID, ttl, time.Now())
	if err != nil {
		return "", err
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// upgradeHash re-hashes the password after a successful login when the hasher
// cost changed. Failures only cost the upgrade.
func (s *Service) upgradeHash(ctx context.Context, user *domainuser.User, password string) {
	r, ok := s.Passwords.(Rehasher)
	if !ok || !r.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.Passwords.Hash(password)
	if err != nil {
		s.logger().Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := s.Users.Save(ctx, user); err != nil {
		s.logger().Warn("password rehash not stored", "user_id", user.ID, "error", err)
	}
}

func (s *Service) configured() error {
	var missing []string
	if s.Users == nil {
		missing = append(missing, "users")
	}
	if s.Sessions == nil {
		missing = append(missing, "sessions")
	}
	if s.Passwords == nil {
		missing = append(missing, "passwords")
	}
	if s.Tokens == nil {
		missing = append(missing, "tokens")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
