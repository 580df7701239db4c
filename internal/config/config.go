package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Retry     RetryConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// SchedulerConfig holds the accrual scheduler configuration
type SchedulerConfig struct {
	// Spec is a cron expression for the accrual tick. The business
	// requirement is a recurring tick; hourly is the product default.
	Spec string
}

// RetryConfig bounds the conflict-retry loop of atomic operations
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "miningapp"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "miningapp_test"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Scheduler: SchedulerConfig{
			Spec: getEnv("SCHEDULER_SPEC", "@hourly"),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("TX_RETRY_MAX_ATTEMPTS", 3),
			BaseBackoff: getEnvAsDuration("TX_RETRY_BASE_BACKOFF", 50*time.Millisecond),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
