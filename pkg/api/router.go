package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/pkg/adapter"
	"github.com/marmos91/dittodrive/pkg/metrics"
)

// NewRouter builds the gin engine serving the drive API.
//
// config must have its defaults applied.
func NewRouter(services *adapter.Services, config Config, m metrics.APIMetrics) *gin.Engine {
	if m == nil {
		m = metrics.NewNoopAPIMetrics()
	}

	router := gin.New()
	router.Use(recovery(), requestLogger(), requestMetrics(m))

	if len(config.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     config.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handlers{services: services, maxUploadBytes: config.MaxUploadBytes}

	router.GET("/health", h.health)
	router.GET("/metrics", h.metrics)

	limiter := ratelimiter.NewKeyed(config.UploadRateLimit, config.UploadBurst, 10*time.Minute)

	api := router.Group("/api", jwtAuth(config.JWTSecret, config.JWTIssuer))
	{
		api.GET("/files", h.listFiles)
		api.POST("/files/upload", uploadRateLimit(limiter, m), limitBody(config.MaxUploadBytes), h.upload)
		api.GET("/files/:id", h.getFile)
		api.GET("/files/:id/path", h.breadcrumbs)
		api.GET("/files/:id/download", h.download)
		api.PATCH("/files/:id/trash", h.toggleTrash)
		api.PATCH("/files/:id/star", h.toggleStar)
		api.DELETE("/files/:id", h.deleteFile)

		api.POST("/folders", h.createFolder)

		api.GET("/storage", h.storage)
		api.GET("/starred", h.starred)
		api.GET("/trash", h.trash)
		api.DELETE("/trash", h.emptyTrash)
	}

	return router
}
