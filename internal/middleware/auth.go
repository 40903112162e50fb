package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipebox/internal/services"
)

// Context keys set by the middleware in this package.
const (
	SessionKey = "session"
	FlowKey    = "flow"
)

// RequireSession lets the request through only while a signed-in session is
// stored, and puts it in the context under SessionKey.
func RequireSession(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := auth.CurrentSession(c.Request.Context())
		if errors.Is(err, services.ErrNotSignedIn) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.Set(SessionKey, session)
		c.Next()
	}
}

// LoadFlow resolves the :id path parameter to an open flow and puts it in
// the context under FlowKey.
func LoadFlow(flows services.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		flow, err := flows.Get(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "flow not found"})
			return
		}
		c.Set(FlowKey, flow)
		c.Next()
	}
}
