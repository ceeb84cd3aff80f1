package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/config"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/controllers"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/routes"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/scheduler"
	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/services/marketdata"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("==============================================")
	log.Println("  Market Data Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints first so orchestrators can detect
	// the service is up
	setupHealthEndpoints(router)

	// Build the market data distribution service
	service := buildMarketDataService(cfg)

	// Setup API and WebSocket routes
	streamController := routes.SetupRoutes(router, service)

	// Start background scheduler
	jobScheduler := scheduler.NewScheduler(service, pollPolicy(cfg))
	go jobScheduler.Start()

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	gracefulShutdown(server, jobScheduler, streamController, service)
}

// buildMarketDataService wires the distribution core from config
func buildMarketDataService(cfg *config.Config) *marketdata.Service {
	sources := []marketdata.Source{
		marketdata.NewFinnhubSource(cfg.FinnhubAPIKey),
		marketdata.NewTwelveDataSource(cfg.TwelveDataAPIKey),
	}

	var relay *marketdata.Relay
	if cfg.RedisAddr != "" {
		relay = marketdata.NewRelay(cfg.RedisAddr, cfg.RedisPassword)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := relay.Ping(ctx); err != nil {
			log.Printf("Warning: Redis relay unreachable at %s: %v", cfg.RedisAddr, err)
		} else {
			log.Printf("Redis quote relay connected at %s", cfg.RedisAddr)
		}
		cancel()
	}

	return marketdata.New(marketdata.Options{
		Sources:            sources,
		Policy:             pollPolicy(cfg),
		FetchTimeout:       cfg.FetchTimeout,
		ValidationInterval: cfg.ValidationInterval,
		StalenessThreshold: cfg.StalenessThreshold,
		PriceCeiling:       cfg.PriceCeiling,
		Relay:              relay,
	})
}

// pollPolicy maps config to the cadence policy
func pollPolicy(cfg *config.Config) marketdata.PollPolicy {
	return marketdata.PollPolicy{
		ActiveInterval: cfg.ActivePollInterval,
		IdleInterval:   cfg.IdlePollInterval,
		DemoInterval:   cfg.DemoPollInterval,
		DemoMode:       cfg.DemoMode,
		OpenHour:       cfg.MarketOpenHour,
		CloseHour:      cfg.MarketCloseHour,
	}
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Market Data Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - the distribution core needs no warm-up, so
	// ready as soon as the server listens
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, streamController *controllers.StreamController, service *marketdata.Service) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop background jobs first
	jobScheduler.Stop()

	// Disconnect streaming clients so their feeds release cleanly
	streamController.Close()

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop all polling and validation tasks
	service.Close()

	log.Println("Server shutdown completed")
}
