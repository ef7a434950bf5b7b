package response

import (
	"math"
	"net/http"
	"strconv"

	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

// StatusFor maps a core error onto an HTTP status.
func StatusFor(err error) int {
	e := services.AsError(err)
	switch e.Kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindAuth:
		switch e.Code {
		case services.CodeRateLimited:
			return http.StatusTooManyRequests
		case services.CodeAccountLocked:
			return http.StatusLocked
		case services.CodeAccountInactive:
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case services.KindPermission:
		return http.StatusForbidden
	case services.KindState:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error writes the failure envelope for err and aborts the chain.
func Error(c *gin.Context, err error) {
	e := services.AsError(err)
	if e.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	if e.Kind == services.KindInfrastructure && e.Err != nil {
		_ = c.Error(e.Err)
	}
	c.AbortWithStatusJSON(StatusFor(e), services.Fail(e))
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, services.OK(message, data))
}
