// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PostgreSQL (credentials, plan catalog, currency rates)
	PostgresURI string

	// MongoDB (quote-cache audit log)
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Redis (key-value quote cache)
	RedisAddr string

	// Credentials
	EncryptionKey    string // base64-encoded 32-byte AES key
	RenewalInterval  time.Duration
	RenewalThreshold time.Duration

	// Quote cache
	CacheTTL     time.Duration
	StaleWindow  time.Duration
	LockTTL      time.Duration
	ProviderTimeout time.Duration

	// Platform defaults
	DefaultCurrency string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresURI: getEnv("POSTGRES_DSN", "postgres://localhost:5432/quotecast"),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "quotecast"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
		RenewalInterval:  time.Duration(getEnvAsInt("TOKEN_RENEWAL_INTERVAL", 60)) * time.Second,
		RenewalThreshold: time.Duration(getEnvAsInt("TOKEN_RENEWAL_THRESHOLD", 300)) * time.Second,

		CacheTTL:        time.Duration(getEnvAsInt("QUOTE_CACHE_TTL", 900)) * time.Second,
		StaleWindow:     time.Duration(getEnvAsInt("QUOTE_STALE_WINDOW", 300)) * time.Second,
		LockTTL:         time.Duration(getEnvAsInt("QUOTE_LOCK_TTL", 30)) * time.Second,
		ProviderTimeout: time.Duration(getEnvAsInt("PROVIDER_TIMEOUT", 10)) * time.Second,

		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
