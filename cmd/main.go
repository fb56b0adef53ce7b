package main

import (
	"task-service/internal/handler"
	"task-service/internal/middleware"
	"task-service/internal/partition"
	"task-service/internal/tenant"
	"task-service/pkg/config"
	"task-service/pkg/database"
	"task-service/pkg/jwtutil"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting task service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Core wiring: host resolution and partition scoping over the shared DB
	resolver := tenant.NewResolver(database.GetDB())
	manager := partition.NewManager(database.GetDB())
	handler.Init(manager, resolver)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.TenantContext(resolver, cfg.Server.PublicHost))

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes - tenant users on tenant hosts, super principals
	// on the public host
	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register", handler.Register)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Task management - tenant-partition scoped
	tasks := api.Group("/tasks")
	tasks.GET("", handler.ListTasks)
	tasks.POST("", handler.CreateTask)
	tasks.GET("/:id", handler.GetTask)
	tasks.PATCH("/:id", handler.UpdateTask)
	tasks.DELETE("/:id", handler.DeleteTask)
	tasks.POST("/:id/comments", handler.AddComment)
	tasks.GET("/:id/comments", handler.ListComments)
	tasks.POST("/:id/attachments", handler.AddAttachment)
	tasks.GET("/:id/attachments", handler.ListAttachments)

	// User management - tenant-partition scoped
	users := api.Group("/users")
	users.GET("", handler.ListUsers)
	users.GET("/me", handler.Me)
	users.GET("/:id", handler.GetUser)
	users.PATCH("/:id", handler.UpdateUser)

	// Tenant administration - shared partition, public host only
	tenants := api.Group("/tenants")
	tenants.GET("", handler.ListTenants)
	tenants.POST("", handler.CreateTenant)
	tenants.GET("/:id", handler.GetTenant)
	tenants.POST("/:id/domains", handler.AddDomain)
	tenants.DELETE("/:id", handler.DeactivateTenant)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
