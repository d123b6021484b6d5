package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUser = "X-User"
	HeaderRole = "X-Role"

	userKey = "identity.user"
	roleKey = "identity.role"
)

// Identity reads the caller set by the authenticating proxy. Requests with
// no user are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(HeaderUser))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser + " header"})
			return
		}
		c.Set(userKey, user)
		c.Set(roleKey, strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderRole))))
		c.Next()
	}
}

// Caller returns the user and role stored by Identity.
func Caller(c *gin.Context) (user, role string) {
	return c.GetString(userKey), c.GetString(roleKey)
}
