package routes

import (
	"net/http"
	"prodtest-collector/internal/config"
	"prodtest-collector/internal/delivery/http/handler"
	"prodtest-collector/internal/infrastructure/database/postgres"
	"prodtest-collector/internal/logger"
	"prodtest-collector/internal/middleware"
	"prodtest-collector/internal/usecase/record"
	"prodtest-collector/internal/usecase/viewer"
	"time"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config, db *postgres.DB) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware in order: recovery, request ID, logging, security headers,
	// CORS, request size limit, general rate limit.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	recordRepository := postgres.NewRecordRepository(db)
	recordService := record.NewService(recordRepository)
	recordHandler := handler.NewRecordHandler(recordService)

	viewerTracker := viewer.NewTracker(time.Duration(cfg.Viewer.TimeoutSeconds) * time.Second)
	viewerHandler := handler.NewViewerHandler(viewerTracker)

	dashboardHandler := handler.NewDashboardHandler()

	api := router.Group("/api")
	{
		recordHandler.RegisterRoutes(api)
		viewerHandler.RegisterRoutes(api)
	}

	router.GET("/", dashboardHandler.Dashboard)

	logger.Info("All routes initialized")
	return router
}
