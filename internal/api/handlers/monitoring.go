package handlers

import (
	"context"
	"net/http"
	"time"

	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MonitoringHandler struct {
	db *gorm.DB
}

func NewMonitoringHandler(db *gorm.DB) *MonitoringHandler {
	return &MonitoringHandler{db: db}
}

// Health reports whether the API and its database are reachable
func (h *MonitoringHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, services.Result{Success: false, Message: "Database unavailable"})
		return
	}
	c.JSON(http.StatusOK, services.OK("Facility booking API is running", gin.H{"status": "ok"}))
}
