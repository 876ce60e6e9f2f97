// Package config provides configuration management for the coin data pipeline.
// It loads configuration from environment variables and .env files, with the
// market-data API endpoint and key optionally overridden by a remote
// configuration object in the storage bucket.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Pipeline    PipelineConfig
	API         APIConfig
	ObjectStore ObjectStoreConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Server      ServerConfig
	Logging     LoggingConfig
}

// PipelineConfig holds run parameters for a snapshot
type PipelineConfig struct {
	Limit      int    // number of assets requested per fetch
	Start      int    // 1-based pagination offset
	Convert    string // fiat currency code for quotes
	Database   string // warehouse database
	Table      string // warehouse table
	DataPrefix string // object key prefix for CSV snapshots
	LogPrefix  string // object key prefix for run logs
	WorkDir    string // local scratch directory for artifacts
}

// APIConfig holds CoinMarketCap API configuration.
// URI and Key act as fallbacks when the remote configuration object is absent
// from the environment-only deployments.
type APIConfig struct {
	URI string
	Key string
}

// ObjectStoreConfig holds S3-compatible object storage configuration
type ObjectStoreConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	Bucket          string
	ConfigObjectKey string // key of the remote config.json
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds fetch cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// ServerConfig holds status API server configuration
type ServerConfig struct {
	Port string
	Host string
	RPS  int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Pipeline: PipelineConfig{
			Limit:      getEnvAsInt("PIPELINE_LIMIT", 5000),
			Start:      getEnvAsInt("PIPELINE_START", 1),
			Convert:    getEnv("PIPELINE_CONVERT", "USD"),
			Database:   getEnv("PIPELINE_WAREHOUSE_DATABASE", "cryptocurrency"),
			Table:      getEnv("PIPELINE_WAREHOUSE_TABLE", "coin_data"),
			DataPrefix: strings.Trim(getEnv("PIPELINE_DATA_PREFIX", "cryptocurrency-data"), "/"),
			LogPrefix:  strings.Trim(getEnv("PIPELINE_LOG_PREFIX", "config"), "/"),
			WorkDir:    getEnv("PIPELINE_WORK_DIR", os.TempDir()),
		},
		API: APIConfig{
			URI: getEnv("CMC_API_URI", "https://pro-api.coinmarketcap.com/v1/cryptocurrency/listings/latest"),
			Key: getEnv("CMC_API_KEY", ""),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        getEnv("OBJECT_STORE_ENDPOINT", "localhost:9000"),
			AccessKey:       getEnv("OBJECT_STORE_ACCESS_KEY", ""),
			SecretKey:       getEnv("OBJECT_STORE_SECRET_KEY", ""),
			UseSSL:          getEnvAsBool("OBJECT_STORE_USE_SSL", false),
			Bucket:          getEnv("OBJECT_STORE_BUCKET", "coin-data"),
			ConfigObjectKey: getEnv("OBJECT_STORE_CONFIG_KEY", "config/config.json"),
		},
		Database: DatabaseConfig{
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "default"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "coin_pipeline"),
				User:           getEnv("POSTGRES_USER", "pipeline"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			RPS:  getEnvAsInt("SERVER_RPS", 50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if config.Pipeline.Limit <= 0 {
		return nil, fmt.Errorf("PIPELINE_LIMIT must be positive, got %d", config.Pipeline.Limit)
	}
	if config.Pipeline.Start <= 0 {
		return nil, fmt.Errorf("PIPELINE_START must be positive, got %d", config.Pipeline.Start)
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
