package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DevUser sets a firebase uid in context without verifying a token.
// - The uid comes from X-User-Id, falling back to "demo-user".
// - Used only when Firebase is not configured (local development).
func DevUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			uid = "demo-user"
		}

		c.Set(CtxFirebaseUID, uid)
		c.Next()
	}
}
