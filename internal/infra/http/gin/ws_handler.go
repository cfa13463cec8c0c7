package ginserver

import (
	"log/slog"

	gin "github.com/gin-gonic/gin"

	"rentspot/internal/infra/ws"
)

// WebSocketRoute authenticates and hands the connection to the chat protocol.
func WebSocketRoute(h *ws.Handler, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := requireRole(c, "")
		if !ok {
			return
		}
		if err := h.Serve(c.Request.Context(), p.ID, c.Writer, c.Request); err != nil && logger != nil {
			logger.Debug("websocket upgrade failed", "user_id", p.ID, "error", err)
		}
	}
}
