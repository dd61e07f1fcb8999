package main

import (
	"net/http"

	"pennywise/internal/handlers"
	"pennywise/internal/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// routerDeps carries what the HTTP surface is built from.
type routerDeps struct {
	JWTSecret      string
	InternalAPIKey string

	Health     *handlers.HealthHandler
	Categories *handlers.BudgetCategoryHandler
	Goals      *handlers.GoalHandler
	Progress   *handlers.ProgressHandler
}

func newRouter(deps routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")

	// Health check endpoint
	v1.GET("/health", deps.Health.Health)

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.JWTSecret))

	// Budget category routes
	categories := protected.Group("/budget-categories")
	categories.POST("", deps.Categories.CreateCategory)
	categories.GET("", deps.Categories.GetCategories)
	categories.PUT("/order", deps.Categories.ReorderCategories)
	categories.GET("/:id", deps.Categories.GetCategory)
	categories.PUT("/:id", deps.Categories.RenameCategory)
	categories.DELETE("/:id", deps.Categories.DeleteCategory)

	// Goal routes
	goals := protected.Group("/goals")
	goals.PUT("", deps.Goals.SetGoal)
	goals.GET("/history", deps.Goals.GetGoalHistory)
	goals.GET("/resolve", deps.Goals.ResolveGoal)
	goals.GET("/range", deps.Goals.ResolveRange)

	// Progress routes
	protected.GET("/progress", deps.Progress.GetProgress)
	protected.GET("/budget-overview", deps.Progress.GetOverview)

	// Internal reporting routes
	internal := router.Group("/api/internal", middleware.ServiceKeyMiddleware(deps.InternalAPIKey))
	reporting := internal.Group("/users/:user_id", middleware.UserFromPath())
	reporting.GET("/progress", deps.Progress.GetProgress)
	reporting.GET("/budget-overview", deps.Progress.GetOverview)

	return router
}
