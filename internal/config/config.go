package config

import (
	"os"
	"strconv"
	"time"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type RedisConfig struct {
	Addr string
	DB   int
}

type IngestionConfig struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
	WorkerCount  int
}

type Config struct {
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Redis       RedisConfig
	Ingestion   IngestionConfig
	MetricsPort string
}

func Load() Config {
	return Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "fleettrack_user"),
			Password: getEnv("DB_PASSWORD", "fleettrack_pass"),
			Database: getEnv("DB_NAME", "fleettrack_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnvAsInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getEnvAsInt("REDIS_DB", 0),
		},
		Ingestion: IngestionConfig{
			PollInterval: time.Duration(getEnvAsInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
			FetchTimeout: time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
			WorkerCount:  getEnvAsInt("WORKER_COUNT", 4),
		},
		MetricsPort: getEnv("METRICS_PORT", "9000"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
