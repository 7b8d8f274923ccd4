package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Shopify
	Shopify ShopifyConfig

	// Services
	API       APIConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// ShopifyConfig holds Shopify Admin API configuration
type ShopifyConfig struct {
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port            int
	HealthCheckPort int
	JWTSecret       string
	JWTExpiry       time.Duration
	RateLimitRPS    int
}

// SchedulerConfig holds rule scheduler configuration
type SchedulerConfig struct {
	Port            int
	HealthCheckPort int
	RunInterval     time.Duration
	Shops           []string
	StreamName      string
}

// WorkerConfig holds trigger worker configuration
type WorkerConfig struct {
	Port            int
	HealthCheckPort int
	ConsumerGroup   string
	ConsumerName    string
	StreamName      string
	ProcessTimeout  time.Duration
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "merch_engine"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Shopify: ShopifyConfig{
			AccessToken: getEnv("SHOPIFY_ACCESS_TOKEN", ""),
			APIVersion:  getEnv("SHOPIFY_API_VERSION", "2024-10"),
			Timeout:     getEnvAsDuration("SHOPIFY_TIMEOUT", 15*time.Second),
		},
		API: APIConfig{
			Port:            getEnvAsInt("API_PORT", 8090),
			HealthCheckPort: getEnvAsInt("API_HEALTH_PORT", 8091),
			JWTSecret:       getEnv("API_JWT_SECRET", ""),
			JWTExpiry:       getEnvAsDuration("API_JWT_EXPIRY", 24*time.Hour),
			RateLimitRPS:    getEnvAsInt("API_RATE_LIMIT_RPS", 100),
		},
		Scheduler: SchedulerConfig{
			Port:            getEnvAsInt("SCHEDULER_PORT", 8092),
			HealthCheckPort: getEnvAsInt("SCHEDULER_HEALTH_PORT", 8093),
			RunInterval:     getEnvAsDuration("SCHEDULER_RUN_INTERVAL", 1*time.Hour),
			Shops:           getEnvAsStringSlice("SCHEDULER_SHOPS", []string{}),
			StreamName:      getEnv("SCHEDULER_STREAM_NAME", "trigger.jobs"),
		},
		Worker: WorkerConfig{
			Port:            getEnvAsInt("WORKER_PORT", 8094),
			HealthCheckPort: getEnvAsInt("WORKER_HEALTH_PORT", 8095),
			ConsumerGroup:   getEnv("WORKER_CONSUMER_GROUP", "trigger-workers"),
			ConsumerName:    getEnv("WORKER_CONSUMER_NAME", "worker-1"),
			StreamName:      getEnv("WORKER_STREAM_NAME", "trigger.jobs"),
			ProcessTimeout:  getEnvAsDuration("WORKER_PROCESS_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.Shopify.APIVersion == "" {
		return fmt.Errorf("SHOPIFY_API_VERSION is required")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
