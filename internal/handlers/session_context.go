package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

const sessionContextKey = "session_context"

// SessionContextMiddleware builds the caller's SessionContext from request
// headers so controllers never read ambient user state.
func SessionContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := strings.TrimSpace(c.GetHeader("X-Account-ID"))
		if account == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Account-ID header is required"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		c.Set(sessionContextKey, models.SessionContext{
			AccountIdentifier: account,
			UserID:            c.GetHeader("X-User-ID"),
			Token:             token,
		})
		c.Next()
	}
}

func sessionFrom(c *gin.Context) models.SessionContext {
	if v, ok := c.Get(sessionContextKey); ok {
		if sc, ok := v.(models.SessionContext); ok {
			return sc
		}
	}
	return models.SessionContext{}
}
