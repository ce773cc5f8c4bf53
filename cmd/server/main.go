package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/Time-Craft/time-crafting-hub/internal/api"
	"github.com/Time-Craft/time-crafting-hub/internal/cache"
	"github.com/Time-Craft/time-crafting-hub/internal/config"
	"github.com/Time-Craft/time-crafting-hub/internal/realtime"
	"github.com/Time-Craft/time-crafting-hub/internal/repository"
	"github.com/Time-Craft/time-crafting-hub/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load configuration
	cfg := config.LoadConfig()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Error("failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Realtime change feed: Postgres triggers -> LISTEN/NOTIFY -> broker
	broker := realtime.NewBroker()
	listener := realtime.NewListener(cfg.Database.GetDSN(), broker, logger)
	if err := listener.Start(); err != nil {
		logger.Error("failed to start change listener", "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	// Cached views, reconciled against the change feed
	offers := cache.NewOfferCache()
	balances := cache.NewBalanceStore(cache.DefaultBalanceTTL)
	synchronizer := realtime.NewSynchronizer(offers, balances, logger)
	synchronizer.Start(broker)
	defer synchronizer.Stop()

	// Create service
	svc := service.NewDefaultService(repo, offers, balances, cfg.Auth.JWTSecret, logger)

	// Create API handler
	handler := api.NewHandler(svc, broker, logger)

	// Set up Gin router
	router := gin.Default()
	router.Use(api.MetricsMiddleware())

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
