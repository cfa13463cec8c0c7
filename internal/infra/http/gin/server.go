package ginserver

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentspot/internal/infra/config"
	"rentspot/internal/infra/obs"
)

type PointsHTTP interface {
	Balance(c *gin.Context)
	Transactions(c *gin.Context)
	Transfer(c *gin.Context)
	PublicBalance(c *gin.Context)
}

type ListingHTTP interface {
	Publish(c *gin.Context)
	Get(c *gin.Context)
}

// Handlers groups the HTTP surface. Nil members leave their routes unmounted.
type Handlers struct {
	Auth           AuthHTTP
	Points         PointsHTTP
	Chat           ChatHTTP
	Listing        ListingHTTP
	WebSocket      gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	gin.SetMode(ginMode(cfg.Env))
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", gin.Mode())
	}

	router := gin.New()
	router.Use(gin.Recovery(), obsMW.RequestID(), obsMW.LoggerMiddleware(), cors.New(corsConfig(cfg.CORSOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	router.GET("/metrics", health.Metrics())

	api := router.Group("/api/v1")
	mountAuth(api, h.Auth)
	mountPoints(api, h.Points)
	mountListings(api, h.Listing)
	mountChat(api, h.Chat, h.WebSocket)
	return router
}

func mountAuth(api *gin.RouterGroup, h AuthHTTP) {
	if h == nil {
		return
	}
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

func mountPoints(api *gin.RouterGroup, h PointsHTTP) {
	if h == nil {
		return
	}
	api.GET("/points", h.Balance)
	api.GET("/points/transactions", h.Transactions)
	api.POST("/points/transfer", h.Transfer)
	api.GET("/users/:id/points", h.PublicBalance)
}

func mountListings(api *gin.RouterGroup, h ListingHTTP) {
	if h == nil {
		return
	}
	api.POST("/ads", h.Publish)
	api.GET("/ads/:id", h.Get)
}

func mountChat(api *gin.RouterGroup, h ChatHTTP, ws gin.HandlerFunc) {
	if h != nil {
		api.GET("/conversations", h.ListConversations)
		api.GET("/messages/:ad_id/:user_id", h.ListMessages)
		api.POST("/messages", h.SendMessage)
	}
	if ws != nil {
		api.GET("/ws", ws)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func ginMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		return gin.DebugMode
	case "test", "testing":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
