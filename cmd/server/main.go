package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/config"
	"github.com/villastay/booking-backend/internal/database"
	"github.com/villastay/booking-backend/internal/handlers"
	"github.com/villastay/booking-backend/internal/middleware"
	"github.com/villastay/booking-backend/internal/services"
	"github.com/villastay/booking-backend/pkg/jwt"
	"github.com/villastay/booking-backend/pkg/paytm"
	"github.com/villastay/booking-backend/pkg/whatsapp"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting VillaStay Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize repositories
	bookingRepo := database.NewBookingRepository(db)
	eventRepo := database.NewWebhookEventRepository(db)

	// Initialize gateways
	whatsappGateway := whatsapp.NewClient(whatsapp.Config{
		APIURL:        cfg.WhatsApp.APIURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		VerifyToken:   cfg.WhatsApp.VerifyToken,
	}, logger)
	logger.Infof("Messaging gateway: %s", whatsappGateway.GetName())

	refundGateway := paytm.NewClient(paytm.Config{
		MerchantID:  cfg.Paytm.MerchantID,
		MerchantKey: cfg.Paytm.MerchantKey,
		Environment: cfg.Paytm.Environment,
	}, logger)
	logger.Infof("Refund gateway: %s (%s)", refundGateway.GetName(), cfg.Paytm.Environment)

	// Service tokens secure the processor endpoints; without a secret the
	// endpoints are open, which is only acceptable in local development
	var jwtService *jwt.Service
	if cfg.Dispatch.ServiceSecret != "" {
		jwtService = jwt.NewService(cfg.Dispatch.ServiceSecret, cfg.Dispatch.TokenExpiry)
	} else {
		logger.Warn("SERVICE_TOKEN_SECRET not set, processor endpoints are unauthenticated")
	}

	// Initialize services
	dedupCache := services.NewDedupCache(cfg.Webhook.DedupTTL)
	defer dedupCache.Stop()

	dispatcher := services.NewHTTPDispatcher(cfg.Dispatch.BaseURL, jwtService, logger)

	cleanupService := services.NewCleanupService(eventRepo, cfg.Webhook.EventRetention, logger)
	if err := cleanupService.Start(); err != nil {
		logger.Fatalf("Failed to start cleanup service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(bookingRepo, eventRepo, whatsappGateway, dedupCache, dispatcher, logger)
	confirmationHandler := handlers.NewConfirmationHandler(bookingRepo, whatsappGateway, cfg.Frontend.BaseURL, logger)
	cancellationHandler := handlers.NewCancellationHandler(bookingRepo, whatsappGateway, refundGateway, logger)
	eticketHandler := handlers.NewETicketHandler(bookingRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  cfg.CORS.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// WhatsApp webhook (Meta calls these)
	router.GET("/webhook/whatsapp", webhookHandler.Verify)
	router.POST("/webhook/whatsapp", webhookHandler.Receive)

	// Booking processors (internal, invoked by the webhook dispatcher)
	bookings := router.Group("/bookings")
	bookings.Use(middleware.ServiceAuth(jwtService))
	{
		bookings.POST("/process-confirmed", confirmationHandler.ProcessConfirmed)
		bookings.POST("/process-cancelled", cancellationHandler.ProcessCancelled)
	}

	// Public e-ticket view
	router.GET("/eticket", eticketHandler.GetETicket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cleanupService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
			status := c.Writer.Status()
			if status >= 500 {
				entry.Error("Request completed with server error")
			} else if status >= 400 {
				entry.Warn("Request completed with client error")
			} else {
				entry.Info("Request completed successfully")
			}
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
