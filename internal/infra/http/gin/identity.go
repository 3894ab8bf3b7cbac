package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

// The identity proxy in front of the engine authenticates users and forwards
// these headers.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

func requireUser(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing " + headerUserID + " header"})
		return "", false
	}
	return id, true
}

func userRole(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole)))
}
