package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/services/auth"
	domainauth "rentspot/internal/domain/auth"
	domainuser "rentspot/internal/domain/user"
	"rentspot/internal/infra/security"
)

const principalKey = "rentspot.principal"

// principal is the authenticated caller of a request.
type principal struct {
	ID        string
	Token     string
	ExpiresAt time.Time
	account   *domainuser.User
}

func (p principal) user() *domainuser.User { return p.account }

type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*auth.ResolveResult, error)
}

// AuthMiddleware turns a session token into a principal and marks the user as
// the actor of the request context. Anonymous requests pass through; handlers
// decide whether they need a caller. Browsers cannot set headers on websocket
// upgrades, so a token query parameter is accepted too.
type AuthMiddleware struct {
	Service TokenResolver
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	if p, ok := m.authenticate(c); ok {
		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), p.ID))
	}
	c.Next()
}

func (m AuthMiddleware) authenticate(c *gin.Context) (principal, bool) {
	token := tokenFromRequest(c)
	if m.Service == nil || !security.LooksLikeToken(token) {
		return principal{}, false
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if m.Logger != nil && !errors.Is(err, domainauth.ErrSessionNotFound) {
			m.Logger.Debug("session token rejected", "error", err)
		}
		return principal{}, false
	}
	p := principal{ID: string(resolved.User.ID), Token: token, account: resolved.User}
	if resolved.Session != nil {
		p.ExpiresAt = resolved.Session.ExpiresAt
	}
	return p, true
}

func tokenFromRequest(c *gin.Context) string {
	if token := bearer(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

func bearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return principal{}, false
	}
	p, ok := v.(principal)
	return p, ok
}

// requireRole aborts with 401 for anonymous callers and 403 when role is set
// and the caller lacks it.
func requireRole(c *gin.Context, role domainuser.Role) (principal, bool) {
	p, ok := currentPrincipal(c)
	switch {
	case !ok:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	case role != "" && (p.account == nil || !p.account.HasRole(role)):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
