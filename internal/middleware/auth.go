package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after UserAuth. It rejects identities whose role is
// not one of allowedRoles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authorization token missing")
			return
		}

		match := false
		for _, r := range allowedRoles {
			if identity.Role == r {
				match = true
				break
			}
		}
		if !match {
			log.Println("[AUTH] [ERROR] role", identity.Role, "denied for", c.FullPath())
			abort(c, http.StatusForbidden, "Not authorized as "+strings.Join(allowedRoles, " or "))
			return
		}

		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole("admin")
}
