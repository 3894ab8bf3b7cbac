package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type BookingHTTP interface {
	Validate(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Cancel(c *gin.Context)
	ListMine(c *gin.Context)
}

type SearchHTTP interface {
	Search(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Maintenance(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Search       SearchHTTP
	Availability AvailabilityHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.RequestID())
	router.Use(obsMW.Recovery())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", headerUserID, headerUserRole, "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Search != nil {
		api.GET("/search", h.Search.Search)
	}
	if h.Booking != nil {
		api.POST("/bookings/validate", h.Booking.Validate)
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Availability != nil {
		api.GET("/rooms/:id/availability", h.Availability.Calendar)
		api.POST("/rooms/:id/maintenance", h.Availability.Maintenance)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
