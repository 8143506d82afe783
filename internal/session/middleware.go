package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey      = "userID"
	displayNameKey = "displayName"
)

// Middleware validates the Authorization header and stores the caller's
// identity on the gin context.
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		id, err := tokens.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, id.UserID)
		c.Set(displayNameKey, id.DisplayName)
		c.Next()
	}
}

// FromContext reads the identity the middleware stored.
func FromContext(c *gin.Context) Identity {
	return Identity{
		UserID:      c.GetString(userIDKey),
		DisplayName: c.GetString(displayNameKey),
	}
}

// FromRequestToken extracts an identity from a raw token found in either the
// Authorization header or the token query parameter. Used by the websocket
// handshake, where browsers cannot always set headers.
func FromRequestToken(tokens *TokenManager, header, query string) (Identity, bool) {
	raw := query
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			raw = parts[1]
		}
	}
	if raw == "" {
		return Identity{}, false
	}
	id, err := tokens.Parse(raw)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}
