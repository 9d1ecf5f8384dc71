package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"imagemorph-backend/internal/config"
	"imagemorph-backend/internal/database"
	"imagemorph-backend/internal/handlers"
	"imagemorph-backend/internal/inference"
	"imagemorph-backend/internal/middleware"
	"imagemorph-backend/internal/payments"
	"imagemorph-backend/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required; set it to the Supabase PostgreSQL connection string")
	}

	// External service clients
	paymentsClient := payments.NewClient(cfg.StripeAPIBaseURL, cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	inferenceClient := inference.NewClient(cfg.ReplicateAPIBaseURL, cfg.ReplicateAPIToken, cfg.ReplicateModel)

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	defer migrator.Close()
	if err := migrator.Run(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Handlers
	checkoutHandler := handlers.NewCheckoutHandler(dbClient, storageClient, paymentsClient, cfg.SupabaseInputBucket, cfg.BaseURL)
	webhookHandler := handlers.NewWebhookHandler(dbClient, paymentsClient, realtimeClient)
	generateHandler := handlers.NewGenerateHandler(dbClient, storageClient, inferenceClient, realtimeClient, cfg.SupabaseOutputBucket, cfg.GenerationTimeout)
	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient, cfg.SupabaseInputBucket, cfg.SupabaseOutputBucket)

	router := gin.Default()

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Webhook (no session auth; verified by its own signature)
	router.POST("/payment-webhook", webhookHandler.HandleWebhook)

	// Authenticated routes
	authed := router.Group("/")
	authed.Use(middleware.AuthMiddleware(cfg))

	authed.POST("/checkout", checkoutHandler.CreateCheckout)
	authed.POST("/generate", generateHandler.Generate)
	authed.DELETE("/project", projectsHandler.DeleteProject)
	authed.GET("/projects", projectsHandler.ListProjects)
	authed.GET("/projects/:project_id", projectsHandler.GetProject)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
