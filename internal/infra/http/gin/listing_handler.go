package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/app/commands"
	"rentspot/internal/app/dto"
	applistings "rentspot/internal/app/listings"
	"rentspot/internal/app/queries"
	domainlistings "rentspot/internal/domain/listings"
)

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type publishListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PricePerDay int64    `json:"price_per_day"`
	Currency    string   `json:"currency"`
	Photos      []string `json:"photos"`
}

// Publish creates an ad and charges the posting fee from the owner's points.
func (h ListingHandler) Publish(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req publishListingRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := commands.Dispatch[applistings.PublishListingCommand, applistings.PublishResult](c.Request.Context(), h.Commands, applistings.PublishListingCommand{
		OwnerID:     p.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		PricePerDay: req.PricePerDay,
		Currency:    req.Currency,
		Photos:      req.Photos,
		RequestKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, h.Logger, "publish listing", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h ListingHandler) Get(c *gin.Context) {
	l, err := queries.Ask[applistings.GetListingQuery, *domainlistings.Listing](c.Request.Context(), h.Queries, applistings.GetListingQuery{ID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, "get listing", err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(l))
}

var _ ListingHTTP = (*ListingHandler)(nil)
