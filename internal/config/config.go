package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Queue
	UseMemoryQueue       bool
	WorkerCount          int
	NotificationQueueURL string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Notifications
	EmailProvider        string // "sendgrid", "ses" or "stub"
	SendGridAPIKey       string
	EmailFromAddress     string
	EmailFromName        string
	DeliveryLogTable     string
	DeliveryLogEnabled   bool
	NotificationsEnabled bool

	// Directory service used for patient and doctor display names.
	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	// HTTP surface
	DoctorJWTSecret    string
	CORSAllowedOrigins []string
	RateLimitPerSec    float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:        strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Medivuno Scheduling"),
		DeliveryLogTable:     getEnv("DELIVERY_LOG_TABLE", "notification_deliveries"),
		DeliveryLogEnabled:   getEnvAsBool("DELIVERY_LOG_ENABLED", false),
		NotificationsEnabled: getEnvAsBool("NOTIFICATIONS_ENABLED", true),

		DirectoryBaseURL: getEnv("DIRECTORY_BASE_URL", ""),
		DirectoryTimeout: getEnvAsDuration("DIRECTORY_TIMEOUT", 10*time.Second),

		DoctorJWTSecret:    getEnv("DOCTOR_JWT_SECRET", ""),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitPerSec:    getEnvAsFloat("RATE_LIMIT_PER_SEC", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 0),
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
