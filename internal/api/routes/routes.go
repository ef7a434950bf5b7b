package routes

import (
	"amc-booking/internal/api/handlers"
	"amc-booking/internal/api/middleware"
	"amc-booking/internal/config"
	"amc-booking/internal/models"
	"amc-booking/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB, svc *services.Services, log *zap.Logger) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Sessions, cfg.Session)
	monitoringHandler := handlers.NewMonitoringHandler(db)
	facilityHandler := handlers.NewFacilityHandler(svc.Facilities)
	bookingHandler := handlers.NewBookingHandler(svc.Bookings)
	auditHandler := handlers.NewAuditHandler(svc.Audit)
	userHandler := handlers.NewUserHandler(svc.Users)

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestContext(log))
	if cfg.Security.RateLimit.Enabled {
		r.Use(middleware.Throttle(cfg.Security.RateLimit.RequestsPerMinute))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", monitoringHandler.Health)

	// Session-aware routes
	app := api.Group("")
	app.Use(middleware.LoadSession(svc.Sessions, cfg.Session))
	app.Use(middleware.CSRF())
	{
		// Auth routes (public)
		auth := app.Group("/auth")
		{
			auth.GET("/csrf", authHandler.CSRF)
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}
	}

	// Protected routes
	protected := app.Group("")
	protected.Use(middleware.RequireAuth(svc.Auth))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/facilities", facilityHandler.List)

		bookings := protected.Group("/bookings")
		{
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.POST("", bookingHandler.Create)
			bookings.PUT("/:id", bookingHandler.Update)
			bookings.DELETE("/:id", bookingHandler.Delete)
			bookings.POST("/:id/approve", middleware.RequireRole(svc.Auth, models.RoleStaff, models.RoleAdmin), bookingHandler.Approve)
			bookings.POST("/:id/reject", middleware.RequireRole(svc.Auth, models.RoleStaff, models.RoleAdmin), bookingHandler.Reject)
		}

		admin := protected.Group("")
		admin.Use(middleware.RequireRole(svc.Auth, models.RoleAdmin))
		{
			audit := admin.Group("/audit")
			{
				audit.GET("/logs", auditHandler.GetLogs)
				audit.GET("/stats", auditHandler.GetStats)
				audit.GET("/history/:table/:id", auditHandler.GetRecordHistory)
				audit.GET("/users/:id", auditHandler.GetUserActivity)
			}

			users := admin.Group("/users")
			{
				users.GET("", userHandler.GetUsers)
				users.GET("/:id", userHandler.GetUser)
				users.POST("/:id/active", userHandler.SetActive)
				users.POST("/:id/unlock", userHandler.Unlock)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, services.Result{Success: false, Message: "API endpoint not found"})
	})
}
