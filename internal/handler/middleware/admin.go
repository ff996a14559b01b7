package middleware

import (
	"github.com/gin-gonic/gin"

	"observe/dashboard/pkg/response"
)

// AdminAuth checks that the session's Observe profile is an admin.
// Must be used after SessionAuth middleware.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := SessionFrom(c)
		if !ok {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		if !s.Snapshot().IsAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
