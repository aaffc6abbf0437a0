package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/middleware"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

// WebSocketHandler attaches an authenticated dashboard to the order feed.
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request, c.GetString(middleware.ContextAdminID))
	}
}
