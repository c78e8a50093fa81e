package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/foundly/foundly/internal/auth"
	"github.com/foundly/foundly/internal/common"
)

// UserIDKey is where AuthRequired stores the authenticated user id in
// the gin context.
const UserIDKey = "user_id"

// AuthRequired rejects requests without a valid Bearer token. The token
// may also arrive in the access_token query parameter, for EventSource
// and WebSocket clients that cannot set headers.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenStr = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenStr == "" {
			tokenStr = c.Query("access_token")
		}
		if tokenStr == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "authentication required")
			c.Abort()
			return
		}

		uid, err := auth.ParseJWT(tokenStr, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// AuthOptional resolves the caller's identity when a valid token is
// present but never rejects the request. Public endpoints use it to
// widen the response for authenticated callers.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenStr = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenStr == "" {
			tokenStr = c.Query("access_token")
		}
		if tokenStr != "" {
			if uid, err := auth.ParseJWT(tokenStr, secret); err == nil {
				c.Set(UserIDKey, uid)
			}
		}
		c.Next()
	}
}
