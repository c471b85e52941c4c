package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dragon-zzuni/smart-assistant/internal/api/handlers"
	"github.com/dragon-zzuni/smart-assistant/internal/api/middleware"
	"github.com/dragon-zzuni/smart-assistant/internal/config"
	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(cfg *config.Config, assistant *services.AssistantService, logService *services.LogService) (*gin.Engine, *middleware.APIKeyManager, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.APIKeyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	apiKeyManager, err := middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	runHandler := handlers.NewRunHandler(assistant)
	logHandler := handlers.NewLogHandler(logService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "mode": assistant.Mode()})
	})

	api := router.Group("/api")
	api.Use(middleware.RequestLogger(logService))
	api.Use(middleware.APIKeyMiddleware(apiKeyManager, logService))
	{
		runs := api.Group("/runs")
		{
			runs.POST("", runHandler.TriggerRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/latest", runHandler.GetLatestRun)
			runs.GET("/latest/report", runHandler.GetLatestReport)
			runs.GET("/:id/logs", logHandler.GetRunLogs)
		}

		api.GET("/logs", logHandler.ListLogs)
	}

	return router, apiKeyManager, nil
}
