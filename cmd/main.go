package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"proposals-service/internal/clients"
	"proposals-service/internal/config"
	"proposals-service/internal/events"
	"proposals-service/internal/handlers"
	"proposals-service/internal/metrics"
	"proposals-service/internal/middleware"
	"proposals-service/internal/repository"
)

// @title Proposals Extraction API
// @version 1.0.0
// @description Extracts products, price offers and images from supplier proposal spreadsheets, with multi-tenant support
// @termsOfService http://swagger.io/terms/

// @contact.name Proposals API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8093
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repository
	proposalsRepo := repository.NewProposalsRepository(db, redisClient)

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer eventsPublisher.Close()

	// Initialize media client (nil when DOCUMENT_SERVICE_URL is unset)
	mediaClient := clients.NewMediaClient()
	if mediaClient == nil {
		log.Println("DOCUMENT_SERVICE_URL not set, extracted images will not be uploaded")
	}

	// Initialize handlers
	extractHandler := handlers.NewExtractHandler(cfg, proposalsRepo, mediaClient, eventsPublisher, logger)
	proposalsHandler := handlers.NewProposalsHandler(proposalsRepo)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	api.Use(middleware.TenantMiddleware())

	proposals := api.Group("/proposals")
	{
		proposals.POST("/import", extractHandler.ImportProposal)
		proposals.GET("/import/template", extractHandler.GetImportTemplate)

		proposals.GET("/runs", proposalsHandler.ListRuns)
		proposals.GET("/runs/:id", proposalsHandler.GetRun)
		proposals.DELETE("/runs/:id", proposalsHandler.DeleteRun)
		proposals.GET("/runs/:id/export", proposalsHandler.ExportRun)
		proposals.GET("/runs/:id/images/unresolved", proposalsHandler.ListUnresolvedImages)

		proposals.GET("/products", proposalsHandler.ListProducts)
		proposals.GET("/products/:id", proposalsHandler.GetProduct)

		proposals.POST("/images/:id/reassign", proposalsHandler.ReassignImage)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := cfg.Port

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Proposals service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down proposals-service...")
	log.Println("Proposals service stopped")
}
