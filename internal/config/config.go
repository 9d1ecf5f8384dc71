package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Stripe
	StripeSecretKey     string
	StripeAPIBaseURL    string
	StripeWebhookSecret string

	// Replicate
	ReplicateAPIToken   string
	ReplicateAPIBaseURL string
	ReplicateModel      string

	// Supabase
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	SupabaseInputBucket    string
	SupabaseOutputBucket   string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string

	// Upper bound on a single generation request, including inference
	// polling and result download.
	GenerationTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeAPIBaseURL:    getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com/v1/"),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		ReplicateAPIToken:   getEnv("REPLICATE_API_TOKEN", ""),
		ReplicateAPIBaseURL: getEnv("REPLICATE_API_BASE_URL", "https://api.replicate.com/v1/"),
		ReplicateModel:      getEnv("REPLICATE_MODEL", "google/nano-banana"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseInputBucket:    getEnv("SUPABASE_INPUT_BUCKET", "input-images"),
		SupabaseOutputBucket:   getEnv("SUPABASE_OUTPUT_BUCKET", "output-images"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		GenerationTimeout: time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.ReplicateAPIToken == "" {
		return fmt.Errorf("REPLICATE_API_TOKEN is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
