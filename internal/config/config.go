package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	PublicBaseURL string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	// Zoom (server-to-server OAuth)
	ZoomAccountID    string
	ZoomClientID     string
	ZoomClientSecret string

	// SendGrid email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Redis (meeting-provider token cache)
	RedisAddr     string
	RedisPassword string

	// Booking lifecycle tuning
	HoldTTL         time.Duration
	ReaperInterval  time.Duration
	OutboxInterval  time.Duration
	OutboxBatchSize int
	DefaultCurrency string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", ""),

		ZoomAccountID:    getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:     getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret: getEnv("ZOOM_CLIENT_SECRET", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "no-reply@therapistbooster.com"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "TherapistBooster"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		HoldTTL:         getEnvAsDuration("BOOKING_HOLD_TTL", 15*time.Minute),
		ReaperInterval:  getEnvAsDuration("HOLD_REAPER_INTERVAL", 5*time.Minute),
		OutboxInterval:  getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize: getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "CAD"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
