package handlers

import (
	"net/http"

	"amc-booking/internal/api/response"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

type FacilityHandler struct {
	facilities *services.FacilityService
}

func NewFacilityHandler(facilities *services.FacilityService) *FacilityHandler {
	return &FacilityHandler{facilities: facilities}
}

// List returns available facilities
func (h *FacilityHandler) List(c *gin.Context) {
	list, err := h.facilities.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", list)
}
