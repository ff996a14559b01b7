package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"observe/dashboard/internal/session"
	jwtpkg "observe/dashboard/pkg/jwt"
	"observe/dashboard/pkg/response"
)

const (
	ContextKeyClaims  = "session_claims"
	ContextKeySession = "session"
)

// SessionAuth validates the dashboard token and loads its session.
func SessionAuth(jwtManager *jwtpkg.Manager, sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		id, _ := claims.SessionID()

		s, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				response.Unauthorized(c, "session expired")
			} else {
				response.InternalError(c, "failed to load session")
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeySession, s)
		c.Next()
	}
}

// SessionFrom returns the session SessionAuth stored on c.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}
