package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hashvault/mining-server/internal/api"
	"github.com/hashvault/mining-server/internal/config"
	"github.com/hashvault/mining-server/internal/notify"
	"github.com/hashvault/mining-server/internal/repository"
	"github.com/hashvault/mining-server/internal/scheduler"
	"github.com/hashvault/mining-server/internal/service"
	"github.com/hashvault/mining-server/internal/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := utils.NewLogger()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db, repository.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseBackoff: cfg.Retry.BaseBackoff,
	})

	// Create service
	svc := service.NewDefaultService(repo, logger, notify.NewLogNotifier(logger), cfg.Auth.JWTSecret)

	// Start profit accrual on its schedule
	sched, err := scheduler.New(svc, logger, cfg.Scheduler.Spec)
	if err != nil {
		log.Fatalf("Failed to set up scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
