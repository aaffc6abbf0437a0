package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
)

const (
	ContextAdminID    = "adminId"
	ContextAdminEmail = "adminEmail"
)

// AdminAuth requires a Bearer admin token. With allowQuery the token may also
// come from ?token=, which browsers need for websocket upgrades.
func AdminAuth(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}

		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := utils.ValidateAdminToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextAdminID, claims.Subject)
		c.Set(ContextAdminEmail, claims.Email)
		c.Next()
	}
}
