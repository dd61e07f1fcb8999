package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // Reference timezone must resolve on minimal images

	"pennywise/internal/budget"
	"pennywise/internal/config"
	"pennywise/internal/database"
	"pennywise/internal/events"
	"pennywise/internal/handlers"
	"pennywise/internal/logger"
	"pennywise/internal/services"
	"pennywise/internal/validator"

	"github.com/gin-gonic/gin"

	_ "pennywise/internal/docs" // Import swagger docs
)

// @title           Pennywise Budget Ledger API
// @version         1.0
// @description     Monthly Income and Expenses goals per category with period-inherited goals and progress against actual transactions.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loc, err := appConfig.Location()
	if err != nil {
		return err
	}
	clock := budget.ZoneClock(loc, nil)
	log.Infow("Reference period", "timezone", loc.String(), "period", clock().String())

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if appConfig.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(appConfig.AMQPURL, appConfig.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = amqpPublisher
		log.Infow("Publishing ledger events", "exchange", appConfig.AMQPExchange)
	}
	defer publisher.Close()

	// Initialize services
	db := dbManager.DB()
	locker := services.NewKeyedLocker()
	categoryService := services.NewBudgetCategoryService(db, appConfig.NamingRules(), locker)
	goalService := services.NewGoalService(db, clock, locker)
	sumService := services.NewTransactionSumService(db, loc)
	progressService := services.NewProgressService(categoryService, goalService, sumService)
	auditService := services.NewAuditService(db)

	// Initialize handlers
	validator.Register()
	healthHandler := handlers.NewHealthHandler(db)
	categoryHandler := handlers.NewBudgetCategoryHandler(categoryService, auditService, publisher)
	goalHandler := handlers.NewGoalHandler(goalService, auditService, publisher)
	progressHandler := handlers.NewProgressHandler(progressService)

	// Initialize Gin router
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(routerDeps{
		JWTSecret:      appConfig.JWTSecret,
		InternalAPIKey: appConfig.InternalAPIKey,
		Health:         healthHandler,
		Categories:     categoryHandler,
		Goals:          goalHandler,
		Progress:       progressHandler,
	})

	log.Infof("Starting Pennywise ledger server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
