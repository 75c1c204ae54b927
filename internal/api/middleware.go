package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultstream/vaultstream/internal/apperr"
)

const contextUserIDKey = "vaultstream.userId"

// claims is the minimal JWT claim set the core depends on: a subject
// identifying the requesting user. Full account management (issuance,
// refresh, registration) is an out-of-scope collaborator; this middleware
// only resolves requestingUserId from an already-issued token.
type claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return authMiddleware(jwtSecret, true)
}

// OptionalAuth resolves requestingUserId when a bearer token is present,
// but allows the request through unauthenticated otherwise (needed for
// public/unlisted video metadata and access requests).
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return authMiddleware(jwtSecret, false)
}

func authMiddleware(jwtSecret string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.CodeAccessDenied, "message": "bearer token required"})
				return
			}
			c.Next()
			return
		}

		var parsed claims
		_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (interface{}, error) {
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.CodeAccessDenied, "message": "invalid or expired token"})
				return
			}
			c.Next()
			return
		}

		c.Set(contextUserIDKey, parsed.UserID)
		c.Next()
	}
}

// requestingUserID reads the userId resolved by the auth middleware, if any.
func requestingUserID(c *gin.Context) string {
	v, ok := c.Get(contextUserIDKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
