package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyAuthConfig configures the static-secret authentication middleware.
type APIKeyAuthConfig struct {
	// Key is the single accepted secret. Empty disables the check — every
	// request is let through (useful for local development).
	Key string
	// SkipPaths are URL path prefixes that bypass authentication.
	SkipPaths []string
}

// APIKeyAuth returns a Gin middleware that accepts the configured secret
// either as an X-API-Key header or as an "Authorization: Bearer <key>"
// header.
func APIKeyAuth(cfg APIKeyAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Key == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "X-API-Key header or Bearer token required",
			})
			return
		}
		if key != cfg.Key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}
		c.Next()
	}
}
