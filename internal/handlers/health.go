package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "database unavailable"})
			return
		}
		respondOK(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
