package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sharath018/calendar-backend/config"
	"github.com/sharath018/calendar-backend/internal/auditlog"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/export"
	"github.com/sharath018/calendar-backend/internal/notification"
	"github.com/sharath018/calendar-backend/internal/recurrence"
	"github.com/sharath018/calendar-backend/middleware"

	_ "github.com/sharath018/calendar-backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Events        *event.Handler
	Occurrences   *recurrence.Handler
	Export        *export.Handler
	Notifications *notification.Handler
	AuditLogs     *auditlog.Handler
	Users         middleware.UserLookup
	Redis         *redis.Client
	// Ready reports whether the store answers; nil means always ready.
	Ready func() error
}

func Setup(r *gin.Engine, cfg *config.Config, h Handlers) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		if h.Ready != nil {
			if err := h.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateLimitPeriod, h.Redis))
	api.Use(middleware.AuditMiddleware()) // captures client IP for audit records

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg, h.Users))

	// ========== Events ==========
	eventRoutes := protected.Group("/events")
	{
		eventRoutes.GET("", h.Events.ListEvents)
		eventRoutes.POST("", h.Events.CreateEvent)
		eventRoutes.GET("/upcoming", h.Events.ListUpcoming)
		eventRoutes.GET("/range", h.Events.ListByDateRange)
		eventRoutes.GET("/category/:category", h.Events.ListByCategory)
		eventRoutes.GET("/stats", h.Events.GetStats)
		eventRoutes.GET("/export", h.Export.ExportEvents)
		eventRoutes.PUT("/bulk", h.Events.BulkUpdate)
		eventRoutes.GET("/:id", h.Events.GetEvent)
		eventRoutes.PUT("/:id", h.Events.UpdateEvent)
		eventRoutes.DELETE("/:id", h.Events.DeleteEvent)
		eventRoutes.GET("/:id/occurrences", h.Occurrences.PreviewOccurrences)
	}

	// ========== Notifications ==========
	notificationRoutes := protected.Group("/notifications")
	{
		notificationRoutes.POST("/devices", h.Notifications.RegisterDevice)
		notificationRoutes.DELETE("/devices", h.Notifications.RemoveDevice)
		notificationRoutes.GET("/logs", h.Notifications.ListLogs)
		notificationRoutes.GET("/stream", h.Notifications.Stream)
	}

	// ========== Audit Logs ==========
	auditRoutes := protected.Group("/auditlogs")
	{
		auditRoutes.GET("", h.AuditLogs.GetAuditLogs)
		auditRoutes.GET("/:id", h.AuditLogs.GetAuditLogByID)
	}
}
