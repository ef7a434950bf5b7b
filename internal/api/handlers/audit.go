package handlers

import (
	"net/http"
	"strconv"

	"amc-booking/internal/api/response"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// GetLogs returns filtered audit records, newest first
func (h *AuditHandler) GetLogs(c *gin.Context) {
	f := services.AuditFilter{
		Action:   c.Query("action"),
		Table:    c.Query("table_name"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	if v := c.Query("user_id"); v != "" {
		uid, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.Error(c, services.ErrValidation)
			return
		}
		u := uint(uid)
		f.UserID = &u
	}

	logs, err := h.audit.GetLogs(c.Request.Context(), f, intQuery(c, "limit"), intQuery(c, "offset"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", logs)
}

func (h *AuditHandler) GetStats(c *gin.Context) {
	stats, err := h.audit.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", stats)
}

// GetRecordHistory returns every change to one row
func (h *AuditHandler) GetRecordHistory(c *gin.Context) {
	recordID, ok := idParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.audit.GetRecordHistory(c.Request.Context(), c.Param("table"), recordID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", logs)
}

func (h *AuditHandler) GetUserActivity(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.audit.GetUserActivity(c.Request.Context(), userID, intQuery(c, "limit"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", logs)
}
