package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string

	AdminJWTSecret string

	// Public lead intake rate limit, requests/sec with burst.
	IntakeRateLimit float64
	IntakeRateBurst int

	RedisAddr     string
	RedisPassword string

	AWSRegion           string
	AWSEndpointOverride string
	CanonicalTable      string
	BedrockModelID      string

	NormalizeMaxTokens      int
	NormalizeTemperature    float64
	ReviewConfidence        float64
	NormalizeCooldown       time.Duration
	NormalizeRequestTimeout time.Duration
	ShutdownGracePeriod     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		IntakeRateLimit: getEnvAsFloat("INTAKE_RATE_LIMIT", 2),
		IntakeRateBurst: getEnvAsInt("INTAKE_RATE_BURST", 5),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		CanonicalTable:      getEnv("CANONICAL_TABLE", "canonical-lead-records"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),

		NormalizeMaxTokens:      getEnvAsInt("NORMALIZE_MAX_TOKENS", 2048),
		NormalizeTemperature:    getEnvAsFloat("NORMALIZE_TEMPERATURE", 0),
		ReviewConfidence:        getEnvAsFloat("CANONICAL_REVIEW_CONFIDENCE", 0),
		NormalizeCooldown:       getEnvAsDuration("NORMALIZE_COOLDOWN", 30*time.Second),
		NormalizeRequestTimeout: getEnvAsDuration("NORMALIZE_REQUEST_TIMEOUT", 60*time.Second),
		ShutdownGracePeriod:     getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 15*time.Second),
	}
}

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

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
