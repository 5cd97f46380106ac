package main

import (
	"fmt"
	"os"

	"budgettracker/internal/config"
	"budgettracker/internal/database"
	"budgettracker/internal/logger"
	"budgettracker/internal/router"
	"budgettracker/internal/validator"

	_ "budgettracker/internal/docs" // Import swagger docs
)

// @title           Budget Tracker API
// @version         1.0
// @description     Departmental R&D budget tracking: projects, spend, approvals and transfers.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey AccessKey
// @in header
// @name x-access-key
// @description Per-user access key. A "Bearer" JWT from /auth/login in the Authorization header is also accepted.

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

	// Create database manager
	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()
	engine := router.New(dbManager.DB(), appConfig)

	log.Infow("Starting budget tracker server",
		"port", appConfig.Port,
		"db_driver", appConfig.DBDriver,
		"budget_year", appConfig.BudgetYear,
	)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return engine.Run(":" + appConfig.Port)
}
