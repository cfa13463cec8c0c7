package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/middleware"
	"rentspot/internal/app/services/auth"
	domainchat "rentspot/internal/domain/chat"
	domainledger "rentspot/internal/domain/ledger"
	domainlistings "rentspot/internal/domain/listings"
	"rentspot/internal/infra/validation"
)

// respondError maps application errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without details.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error(op+" failed", "error", err, "request_id", c.GetString("request_id"))
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalidInput),
		errors.Is(err, domainledger.ErrInvalidAmount),
		errors.Is(err, domainledger.ErrSelfTransfer),
		errors.Is(err, domainchat.ErrEmptyMessage),
		errors.Is(err, domainchat.ErrMessageTooLong),
		errors.Is(err, domainchat.ErrSelfConversation),
		errors.Is(err, domainchat.ErrAdRequired),
		errors.Is(err, domainchat.ErrReceiverRequired),
		errors.Is(err, domainchat.ErrCounterpartNeeded),
		errors.Is(err, domainchat.ErrInvalidID),
		errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrCategoryNeeded),
		errors.Is(err, domainlistings.ErrInvalidPrice),
		errors.Is(err, domainlistings.ErrTooManyPhotos):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domainledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient points"
	case errors.Is(err, auth.ErrActorMismatch):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, domainledger.ErrUnknownRecipient),
		errors.Is(err, domainledger.ErrUnknownUser),
		errors.Is(err, domainlistings.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, middleware.ErrRequestInProgress):
		return http.StatusConflict, "request with this idempotency key is in progress"
	case errors.Is(err, domainledger.ErrPersistence),
		errors.Is(err, domainchat.ErrPersistence):
		return http.StatusServiceUnavailable, "temporarily unavailable, try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// bindJSON decodes the request body into dst and answers 400 when it cannot.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}
