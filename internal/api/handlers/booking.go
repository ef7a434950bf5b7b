package handlers

import (
	"net/http"

	"amc-booking/internal/api/response"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var f services.BookingFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.Error(c, services.ErrValidation)
		return
	}

	rows, err := h.bookings.List(c.Request.Context(), id, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", rows)
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	b, err := h.bookings.Get(c.Request.Context(), id, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", b)
}

func (h *BookingHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req services.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, services.ErrValidation)
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "Booking created successfully", gin.H{"booking_id": b.ID})
}

func (h *BookingHandler) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch services.BookingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, services.ErrValidation)
		return
	}

	b, err := h.bookings.Update(c.Request.Context(), id, bookingID, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Booking updated successfully", b)
}

// Delete cancels, or for admins removes, a booking.
func (h *BookingHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	deleted, err := h.bookings.Delete(c.Request.Context(), id, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	msg := "Booking cancelled"
	if deleted {
		msg = "Booking deleted"
	}
	response.OK(c, http.StatusOK, msg, nil)
}

func (h *BookingHandler) Approve(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	b, err := h.bookings.Approve(c.Request.Context(), id, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Booking approved", b)
}

func (h *BookingHandler) Reject(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	// reason is optional
	_ = c.ShouldBindJSON(&req)

	b, err := h.bookings.Reject(c.Request.Context(), id, bookingID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Booking rejected", b)
}
