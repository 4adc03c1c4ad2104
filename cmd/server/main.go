package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allopieces/push-dispatch/internal/config"
	"github.com/allopieces/push-dispatch/internal/logger"
	"github.com/allopieces/push-dispatch/internal/metrics"
	"github.com/allopieces/push-dispatch/internal/notifications"
	"github.com/allopieces/push-dispatch/internal/storage/pg"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	appLogger := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	log := appLogger.WithComponent("server")

	// Set Gin mode
	log.Info("setting gin mode", "mode", cfg.GinMode)
	gin.SetMode(cfg.GinMode)

	// Initialize database.
	db, err := pg.InitDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	// Initialize the dispatch core
	tokenStore := notifications.NewPGTokenStore(db.DB, appLogger)
	resolver := notifications.NewResolver(tokenStore, time.Duration(cfg.LookupTimeoutSeconds)*time.Second, appLogger)
	builder := notifications.NewPayloadBuilder(cfg.OneSignalAppID, cfg.Delivery)
	gateway := notifications.NewOneSignalClient(cfg.OneSignalAPIURL, cfg.OneSignalAPIKey, time.Duration(cfg.GatewayTimeoutSeconds)*time.Second)
	service := notifications.NewService(resolver, builder, gateway, appLogger)
	handler := notifications.NewHandler(service, appLogger)

	// Initialize Gin router
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(appLogger))

	// Add CORS middleware. Mobile and web clients call the dispatch
	// endpoints cross-origin, so every response carries these headers.
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Dispatch API routes
	api := router.Group("/notifications")
	{
		api.POST("/send", handler.SendNotification)
		api.POST("/message", handler.SendMessageNotification)
	}

	port := ":" + cfg.Port
	log.Info("push dispatch service listening on " + port)

	srv := &http.Server{
		Addr:    port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := db.DB.Close(); err != nil {
		log.Error("failed to close database", "error", err)
	}

	log.Info("server exited")
}
