// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"parcelsort/internal/domain/auth"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/http/v1/handlers"
	"parcelsort/internal/infrastructure/http/v1/middleware"
	"parcelsort/internal/infrastructure/idempotency"
	"parcelsort/pkg/logger"
)

// multipartOverhead is added to the upload limit when the idempotency
// middleware buffers a multipart body.
const multipartOverhead = 1 << 20

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Parcels serves import, scan and trail operations
	Parcels *parcel.Service

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency stores replayable POST responses; nil disables the middleware
	Idempotency idempotency.Store

	// Health checks reported by /health/ready, keyed by component
	Health map[string]handlers.Pinger

	// MaxUploadBytes bounds a manifest upload
	MaxUploadBytes int64
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = handlers.DefaultMaxUploadBytes
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency, cfg.MaxUploadBytes+multipartOverhead))
	}

	baseHandler := handlers.NewBaseHandler()
	registerParcelRoutes(v1, handlers.NewParcelHandler(baseHandler, cfg.Parcels, cfg.MaxUploadBytes))
	registerAuditRoutes(v1, handlers.NewAuditHandler(baseHandler, cfg.Parcels.Trail()))

	return router
}

func registerParcelRoutes(rg *gin.RouterGroup, h *handlers.ParcelHandler) {
	parcels := rg.Group("/parcels")
	{
		parcels.POST("/upload", h.Upload)
		parcels.POST("/scan/:trackingNumber", h.Scan)

		parcels.GET("", h.List)
		parcels.GET("/pending", h.Pending)
		parcels.GET("/scanned", h.Scanned)
		parcels.GET("/imports", h.Imports)
		parcels.GET("/imports/:batchId/content", h.ImportContent)
		parcels.GET("/:trackingNumber", h.Get)

		parcels.DELETE("/clear", middleware.RequireRole(auth.RoleAdmin), h.Clear)
	}
}

func registerAuditRoutes(rg *gin.RouterGroup, h *handlers.AuditHandler) {
	trail := rg.Group("/audit")
	{
		trail.GET("/all", h.All)
		trail.GET("/session/:sessionId", h.BySession)
		trail.GET("/parcel/:trackingNumber", h.ByParcel)
	}
}
