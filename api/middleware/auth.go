package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricecheck/models"
)

// APIKeyHeader carries the client's key.
const APIKeyHeader = "X-API-Key"

// Auth returns API-key authentication middleware.
//
// The X-API-Key header must equal one of apiKeys. Keys are compared in
// constant time. If apiKeys is empty, the middleware is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			abortUnauthorized(c, "missing API key: provide the X-API-Key header")
			return
		}

		if !matchesAny(keys, []byte(key)) {
			abortUnauthorized(c, "invalid API key")
			return
		}

		c.Set("api_key", key)
		c.Next()
	}
}

// matchesAny checks every key so timing does not reveal which one matched.
func matchesAny(keys [][]byte, candidate []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, candidate)
	}
	return found == 1
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		models.NewAutomationError(models.ErrCodeUnauthorized, msg, nil).ToResponse())
}
