package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyRequired guards the admin API with a shared key passed in the
// X-API-KEY header. An empty configured key disables the check, which is
// the local development mode.
func APIKeyRequired(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
