package middleware

import (
	"github.com/gin-gonic/gin"
)

// AuthMiddleware extracts the acting user from upstream JWT claim headers.
// Actual token validation happens at the mesh edge; this only surfaces the
// identity to handlers and falls back to a fixed dev identity locally.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.GetHeader("x-jwt-claim-sub")
		}
		if userID == "" {
			userID = "00000000-0000-0000-0000-000000000001" // Valid UUID for dev
		}

		userEmail := c.GetString("user_email")
		if userEmail == "" {
			userEmail = c.GetHeader("x-jwt-claim-email")
		}

		c.Set("userId", userID)
		c.Set("user_id", userID)
		c.Set("user_email", userEmail)
		c.Next()
	}
}
