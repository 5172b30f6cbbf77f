package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/quill/backend/internal/ai"
	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/handlers"
	"github.com/anonto42/quill/backend/internal/objectstore"
	"github.com/anonto42/quill/backend/internal/retry"
	"github.com/anonto42/quill/backend/internal/router"
	"github.com/anonto42/quill/backend/pkg/config"
	"github.com/anonto42/quill/backend/pkg/firebase"
	"github.com/anonto42/quill/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	queryCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	invalidations, unsubscribe := queryCache.Subscribe()
	defer unsubscribe()
	go func() {
		for msg := range invalidations {
			log.Printf("cache: invalidated %d %s entries", msg.Removed, msg.Resource)
		}
	}()

	var assistant handlers.Assistant
	if gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		log.Printf("AI features disabled: %v", err)
	} else {
		assistant = ai.NewService(gemini, queryCache, retry.Policy{
			MaxAttempts: cfg.SummaryMaxAttempts,
			Backoff:     retry.Exponential(500*time.Millisecond, 5*time.Second),
		})
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Validator
	validator := validators.NewValidator()
	e.Validator = validator

	// Setup global middleware
	config.SetupMiddleware(e, cfg)

	// Setup routes and dependencies
	tracker := router.SetupRoutes(e, router.Deps{
		Config:    cfg,
		DB:        db,
		Verifier:  firebaseApp.AuthClient,
		Uploader:  objectstore.NewFirebaseUploader(firebaseApp.Bucket, firebaseApp.BucketName, cfg.MaxUploadBytes),
		Assistant: assistant,
		Cache:     queryCache,
		Validator: validator,
	})

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	// hijacked websockets outlive Shutdown; stop counting before the databases close
	tracker.Close()
}
