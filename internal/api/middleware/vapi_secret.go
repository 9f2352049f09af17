package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
)

const VapiSecretHeader = "X-Vapi-Secret"

// VapiSecret rejects webhook calls that do not carry the shared server URL
// secret. An empty secret disables the check.
func VapiSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(VapiSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			unauthorized(c, "invalid webhook secret")
			return
		}
		c.Next()
	}
}
