package config

import (
	"os"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Valuation ValuationConfig
	LogLevel  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig holds the NAV cache configuration
type RedisConfig struct {
	Addr    string
	Enabled bool
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	ImportTopic   string
	ConsumerGroup string
	Enabled       bool
}

// ValuationConfig holds accounting policy switches
type ValuationConfig struct {
	// FeeLotPolicy selects how the sell-fee tier is chosen:
	// "fifo" (per-lot) or "earliest" (single earliest open lot).
	FeeLotPolicy string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "fundtracker"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnv("REDIS_ENABLED", "true") == "true",
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "fund-events"),
			ImportTopic:   getEnv("KAFKA_IMPORT_TOPIC", "fund-transaction-imports"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "fund-tracker"),
			Enabled:       getEnv("KAFKA_ENABLED", "true") == "true",
		},
		Valuation: ValuationConfig{
			FeeLotPolicy: getEnv("FEE_LOT_POLICY", "fifo"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
