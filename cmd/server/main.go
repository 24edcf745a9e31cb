package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trainingtracker/internal/cache"
	"trainingtracker/internal/config"
	"trainingtracker/internal/database"
	"trainingtracker/internal/handlers"
	"trainingtracker/internal/repository"
	"trainingtracker/internal/security"
	"trainingtracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET is not set, every API request will be rejected")
	}

	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to %s database", cfg.DatabaseType)

	if err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Schema is up to date")

	// Storage
	catalogRepo := repository.NewCatalogRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Catalog reads go through redis when it is configured
	var catalog service.CatalogReader = catalogRepo
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: catalog cache disabled: %v", err)
		} else {
			defer client.Close()
			catalog = cache.NewCatalogCache(catalogRepo, client, cfg.CatalogCacheTTL)
			log.Printf("Catalog cache enabled (ttl: %s)", cfg.CatalogCacheTTL)
		}
	}

	// Engine
	policyService := service.NewPolicyService(settingsRepo, service.Policy{
		AllowPassedRetake: cfg.AllowPassedRetake,
		StaleAttemptAfter: cfg.StaleAttemptAfter,
	})
	progressService := service.NewProgressService(catalog, progressRepo)
	quizService := service.NewQuizService(catalog, attemptRepo, progressService, policyService)

	// HTTP
	var rateLimiter *security.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		rateLimiter = security.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		defer rateLimiter.Close()
	}

	middleware := handlers.NewMiddleware(cfg.JWTSecret, cfg.JWTIssuer, rateLimiter)
	lessonHandler := handlers.NewLessonHandler(progressService)
	quizHandler := handlers.NewQuizHandler(quizService)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, middleware, lessonHandler, quizHandler)

	handler := handlers.Logging(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Training tracker API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
