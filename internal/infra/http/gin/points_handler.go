package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/dto"
	"rentspot/internal/app/ledger"
	"rentspot/internal/app/queries"
	domainledger "rentspot/internal/domain/ledger"
)

type PointsHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type transferRequest struct {
	ToUserID    string `json:"to_user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (h PointsHandler) Balance(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	balance, err := queries.Ask[ledger.GetBalanceQuery, int64](c.Request.Context(), h.Queries, ledger.GetBalanceQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, "get balance", err)
		return
	}
	c.JSON(http.StatusOK, dto.Balance{UserID: p.ID, Points: balance})
}

func (h PointsHandler) Transactions(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	txs, err := queries.Ask[ledger.ListTransactionsQuery, []domainledger.Transaction](c.Request.Context(), h.Queries, ledger.ListTransactionsQuery{UserID: p.ID})
	if err != nil {
		respondError(c, h.Logger, "list transactions", err)
		return
	}
	c.JSON(http.StatusOK, dto.MapTransactions(p.ID, txs))
}

// Transfer moves points from the current user. The Idempotency-Key header
// makes retries safe.
func (h PointsHandler) Transfer(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := commands.Dispatch[ledger.TransferPointsCommand, ledger.TransferResult](c.Request.Context(), h.Commands, ledger.TransferPointsCommand{
		FromUserID:  p.ID,
		ToUserID:    strings.TrimSpace(req.ToUserID),
		Amount:      req.Amount,
		Description: req.Description,
		RequestKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, h.Logger, "transfer points", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h PointsHandler) PublicBalance(c *gin.Context) {
	res, err := queries.Ask[ledger.GetPublicBalanceQuery, ledger.PublicBalance](c.Request.Context(), h.Queries, ledger.GetPublicBalanceQuery{UserID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, "get public balance", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ PointsHTTP = (*PointsHandler)(nil)
