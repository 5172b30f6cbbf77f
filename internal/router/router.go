package router

import (
	"context"
	"log"
	"time"

	"github.com/anonto42/quill/backend/internal/authoring"
	"github.com/anonto42/quill/backend/internal/cache"
	"github.com/anonto42/quill/backend/internal/commenttree"
	"github.com/anonto42/quill/backend/internal/handlers"
	"github.com/anonto42/quill/backend/internal/loaders"
	"github.com/anonto42/quill/backend/internal/middleware"
	"github.com/anonto42/quill/backend/internal/models"
	"github.com/anonto42/quill/backend/internal/repositories"
	"github.com/anonto42/quill/backend/internal/viewtracker"
	"github.com/anonto42/quill/backend/pkg/config"
	"github.com/anonto42/quill/backend/validators"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Deps are the long-lived collaborators built in main
type Deps struct {
	Config    *config.Config
	DB        *config.DB
	Verifier  middleware.TokenVerifier
	Uploader  authoring.Uploader
	Assistant handlers.Assistant // nil disables the AI routes
	Cache     *cache.Cache
	Validator *validators.CustomValidator
}

// SetupRoutes migrates the schema, wires repositories into handlers and registers every
// route. The returned tracker must be drained on shutdown.
func SetupRoutes(e *echo.Echo, d Deps) *viewtracker.Tracker {
	cfg := d.Config
	pgdb := d.DB.Postgres

	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Comment{},
		&models.Label{},
		&models.PostType{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	postRepo := repositories.NewMongoPostRepository(d.DB.MongoDB)
	commentRepo := repositories.NewPostgresCommentRepository(pgdb)
	labelRepo := repositories.NewPostgresLabelRepository(pgdb)
	typeRepo := repositories.NewPostgresTypeRepository(pgdb)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := postRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create post indexes: %v", err)
	}

	orphans, err := commenttree.ParseOrphanPolicy(cfg.CommentOrphans)
	if err != nil {
		log.Fatalf("Invalid COMMENT_ORPHAN_POLICY: %v", err)
	}
	treeOpts := commenttree.Options{
		MaxDepth: cfg.CommentMaxDepth,
		Orphans:  orphans,
		OnOrphan: func(c models.Comment) {
			log.Printf("comment %d references missing parent %d (policy %s)", c.ID, *c.ParentID, orphans)
		},
	}

	tracker := viewtracker.New(postRepo,
		viewtracker.WithDelay(cfg.ViewDelay),
		viewtracker.WithEnabled(cfg.ViewTrackingOn),
		viewtracker.WithValidator(primitive.IsValidObjectID),
	)
	workflow := authoring.NewWorkflow(d.Uploader, postRepo, d.Validator.Engine())

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(map[string]handlers.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := pgdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"mongo": func(ctx context.Context) error {
			return d.DB.Mongo.Ping(ctx, readpref.Primary())
		},
	}))

	api := e.Group("/api/v1")
	api.Use(loaders.Middleware(userRepo))

	// --- Public routes ---
	postHandler := handlers.NewPostHandler(postRepo, commentRepo, workflow, d.Cache, cfg.MaxUploadBytes)
	postHandler.RegisterPostRoutes(api)

	commentHandler := handlers.NewCommentHandler(commentRepo, postRepo, userRepo, treeOpts, d.Cache)
	commentHandler.RegisterPublicCommentRoutes(api)

	labelHandler := handlers.NewLabelHandler(labelRepo, postRepo, d.Cache)
	labelHandler.RegisterRoutes(api, "/labels")
	typeHandler := handlers.NewTypeHandler(typeRepo, postRepo, d.Cache)
	typeHandler.RegisterRoutes(api, "/types")

	viewHandler := handlers.NewViewHandler(postRepo, tracker, d.Cache)
	viewHandler.RegisterViewRoutes(api)

	aiHandler := handlers.NewAIHandler(d.Assistant, postRepo)
	aiHandler.RegisterAIRoutes(api)
	log.Println("Public routes configured.")

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(userRepo, d.Verifier, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(api.Group("/auth"))

	webhookHandler := handlers.NewWebhookHandler(userRepo, cfg.WebhookSecret)
	webhookHandler.RegisterWebhookRoutes(api.Group("/webhooks"))
	log.Println("Auth and webhook routes configured.")

	// --- Protected routes (require JWT authentication) ---
	protected := api.Group("", middleware.JWTAuthMiddleware(cfg.JWTSecret))
	commentHandler.RegisterCommentRoutes(protected)
	userHandler := handlers.NewUserHandler(userRepo)
	userHandler.RegisterProfileRoutes(protected)
	log.Println("Authenticated routes configured.")

	// --- Admin routes ---
	admin := api.Group("/admin",
		middleware.JWTAuthMiddleware(cfg.JWTSecret),
		middleware.RequireRole(models.RoleAdmin),
	)
	postHandler.RegisterAdminPostRoutes(admin)
	commentHandler.RegisterAdminCommentRoutes(admin)
	labelHandler.RegisterAdminRoutes(admin, "/labels")
	typeHandler.RegisterAdminRoutes(admin, "/types")
	userHandler.RegisterAdminUserRoutes(admin)
	handlers.NewUploadHandler(d.Uploader, cfg.MaxUploadBytes).RegisterUploadRoutes(admin)
	log.Println("Admin routes configured.")

	log.Println("All routes configured.")
	return tracker
}
