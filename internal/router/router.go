// Package router wires services, handlers and middleware into the HTTP API.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"budgettracker/internal/config"
	"budgettracker/internal/handlers"
	"budgettracker/internal/middleware"
	"budgettracker/internal/services"
)

// New builds the API engine over db using cfg.
func New(db *gorm.DB, cfg *config.Config) *gin.Engine {
	admins := cfg.AdminUsernames

	// Services
	userService := services.NewUserService(db, admins)
	groupService := services.NewGroupService(db, admins)
	projectService := services.NewProjectService(db, admins, cfg.BudgetYear)
	executionService := services.NewExecutionService(db, admins)
	adjustmentService := services.NewAdjustmentService(db, admins)
	transferService := services.NewTransferService(db, admins)
	approvalService := services.NewApprovalService(db, admins,
		projectService, executionService, adjustmentService, transferService)
	statisticsService := services.NewStatisticsService(db, cfg.HighRiskThreshold)
	totalBudgetService := services.NewTotalBudgetService(db, admins)
	budgetFileService := services.NewBudgetFileService(db, admins)
	auditService := services.NewAuditService(db)

	files := handlers.FileStore{Dir: cfg.UploadsDir, MaxBytes: cfg.MaxUploadBytes}

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	userHandler := handlers.NewUserHandler(userService, auditService)
	groupHandler := handlers.NewGroupHandler(groupService, auditService)
	projectHandler := handlers.NewProjectHandler(projectService, approvalService, auditService)
	executionHandler := handlers.NewExecutionHandler(executionService, approvalService, auditService, files)
	adjustmentHandler := handlers.NewAdjustmentHandler(adjustmentService, approvalService, auditService)
	approvalHandler := handlers.NewApprovalHandler(approvalService, auditService)
	transferHandler := handlers.NewTransferHandler(transferService, auditService)
	statisticsHandler := handlers.NewStatisticsHandler(statisticsService, func() int {
		return cfg.CurrentBudgetYear(time.Now())
	})
	totalBudgetHandler := handlers.NewTotalBudgetHandler(totalBudgetService, auditService)
	budgetFileHandler := handlers.NewBudgetFileHandler(budgetFileService, auditService, files)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Uploaded vouchers and budget files
	router.Static(handlers.UploadsURLPrefix, cfg.UploadsDir)

	api := router.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	api.POST("/auth/login", authHandler.Login)

	optional := api.Group("")
	optional.Use(middleware.OptionalAuth(userService))
	optional.POST("/users", userHandler.CreateUser)
	optional.GET("/statistics/dashboard", statisticsHandler.GetDashboard)
	optional.GET("/total-budget/:year", totalBudgetHandler.GetTotalBudget)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(userService))

	users := protected.Group("/users")
	users.GET("", userHandler.GetUsers)
	users.GET("/me", userHandler.GetMe)
	users.POST("/me/access-key", userHandler.RegenerateAccessKey)

	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("", groupHandler.GetGroups)
	groups.GET("/:id", groupHandler.GetGroup)
	groups.PUT("/:id", groupHandler.UpdateGroup)
	groups.POST("/:id/members", groupHandler.AddMember)
	groups.DELETE("/:id/members/:userId", groupHandler.RemoveMember)

	projects := protected.Group("/projects")
	projects.POST("", projectHandler.CreateProject)
	projects.GET("", projectHandler.GetProjects)
	projects.GET("/:id", projectHandler.GetProject)
	projects.PUT("/:id", projectHandler.UpdateProject)
	projects.DELETE("/:id", projectHandler.DeleteProject)

	executions := protected.Group("/executions")
	executions.POST("", executionHandler.CreateExecution)
	executions.GET("", executionHandler.GetExecutions)
	executions.GET("/project/:projectId", executionHandler.GetProjectExecutions)
	executions.PUT("/plans", executionHandler.SetExecutionPlan)
	executions.GET("/plans/:projectId", executionHandler.GetExecutionPlans)
	executions.GET("/:id", executionHandler.GetExecution)
	executions.PUT("/:id", executionHandler.UpdateExecution)
	executions.DELETE("/:id", executionHandler.DeleteExecution)

	adjustments := protected.Group("/budget-adjustments")
	adjustments.POST("", adjustmentHandler.CreateAdjustment)
	adjustments.GET("", adjustmentHandler.GetAdjustments)

	approvals := protected.Group("/approvals")
	approvals.POST("/submit", approvalHandler.Submit)
	approvals.GET("/pending/:approverId", approvalHandler.GetPending)
	approvals.POST("/review/:approvalId", approvalHandler.Review)
	approvals.GET("/history", approvalHandler.GetHistory)

	transfers := protected.Group("/project-transfers")
	transfers.POST("", transferHandler.InitiateTransfer)
	transfers.GET("", transferHandler.GetTransfers)
	transfers.GET("/reallocation-options", transferHandler.GetReallocationOptions)
	transfers.GET("/:id", transferHandler.GetTransfer)
	transfers.POST("/:id/approve", transferHandler.ApproveTransfer)
	transfers.POST("/:id/reject", transferHandler.RejectTransfer)

	protected.POST("/total-budget", totalBudgetHandler.SetTotalBudget)

	budgetFiles := protected.Group("/budget-files")
	budgetFiles.POST("", budgetFileHandler.UploadBudgetFile)
	budgetFiles.GET("", budgetFileHandler.GetBudgetFiles)

	return router
}
