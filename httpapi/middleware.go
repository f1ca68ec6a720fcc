package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quoteflow/auth"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// TokenVerifier is the slice of the auth service the middleware needs.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

// AuthRequired rejects requests without a valid Bearer token and stashes the
// actor identity in the gin context.
func AuthRequired(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing bearer token", Status: http.StatusUnauthorized})
			return
		}

		userID, role, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid token", Status: http.StatusUnauthorized})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, string(role))
		c.Next()
	}
}

func actorFrom(c *gin.Context) (string, string) {
	return c.GetString(ctxUserID), c.GetString(ctxRole)
}
