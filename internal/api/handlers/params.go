package handlers

import (
	"strconv"

	"amc-booking/internal/api/middleware"
	"amc-booking/internal/api/response"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, services.ErrValidation)
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

// identity returns the caller identity; routes guarded by RequireAuth
// always have one.
func identity(c *gin.Context) (services.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, services.ErrUnauthenticated)
	}
	return id, ok
}
