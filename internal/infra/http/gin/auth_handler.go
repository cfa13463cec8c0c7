package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/dto"
	"rentspot/internal/app/ledger"
	"rentspot/internal/app/queries"
	authsvc "rentspot/internal/app/services/auth"
	domainuser "rentspot/internal/domain/user"
	"rentspot/internal/infra/security"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
}

type AuthHandler struct {
	Service *authsvc.Service
	Queries queries.Bus
	Logger  *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h AuthHandler) ready(c *gin.Context) bool {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return false
	}
	return true
}

func (h AuthHandler) Register(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.Service.Register(c.Request.Context(), authsvc.RegisterParams{
		Email:    req.Email,
		Name:     req.Name,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAuthResponse(result.User, result.Token, result.Points))
}

func (h AuthHandler) Login(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.Service.Login(c.Request.Context(), authsvc.LoginParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAuthResponse(result.User, result.Token, result.Points))
}

func (h AuthHandler) Logout(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	token := bearerTokenFromContext(c)
	if err := h.Service.Logout(c.Request.Context(), token); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("logout failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the current profile with its point balance. A missing ledger
// account reads as zero points.
func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var points int64
	if h.Queries != nil {
		balance, err := queries.Ask[ledger.GetBalanceQuery, int64](c.Request.Context(), h.Queries, ledger.GetBalanceQuery{UserID: p.ID})
		if err != nil && h.Logger != nil {
			h.Logger.Warn("balance lookup failed", "user_id", p.ID, "error", err)
		}
		points = balance
	}
	c.JSON(http.StatusOK, dto.MapUserProfile(p.user(), points))
}

func (h AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, authsvc.ErrUserBlocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "account blocked"})
	case errors.Is(err, authsvc.ErrPasswordTooShort),
		errors.Is(err, domainuser.ErrEmailRequired),
		errors.Is(err, domainuser.ErrInvalidEmail),
		errors.Is(err, domainuser.ErrNameRequired),
		errors.Is(err, domainuser.ErrNameTooLong),
		errors.Is(err, security.ErrPasswordTooLong),
		errors.Is(err, domainuser.ErrInvalidAvatar):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("auth operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bearerTokenFromContext(c *gin.Context) string {
	if p, ok := currentPrincipal(c); ok {
		return p.Token
	}
	return tokenFromRequest(c)
}

var _ AuthHTTP = (*AuthHandler)(nil)
