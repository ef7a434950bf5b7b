package middleware

import (
	"crypto/subtle"
	"net/http"

	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

const CSRFHeader = "X-CSRF-Token"

// CSRF requires state-changing requests to echo the session's CSRF secret.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if sess := CurrentSession(c); sess != nil {
				c.Header(CSRFHeader, sess.CSRFToken)
			}
			c.Next()
			return
		}

		sess := CurrentSession(c)
		provided := c.GetHeader(CSRFHeader)
		if sess == nil || !secureCompare(sess.CSRFToken, provided) {
			c.AbortWithStatusJSON(http.StatusForbidden, services.Result{
				Success: false,
				Message: "Invalid security token. Please refresh the page.",
			})
			return
		}
		c.Next()
	}
}

func secureCompare(a, b string) bool {
	if a == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
