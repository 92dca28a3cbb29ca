package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadENV loads variables from .env when GO_ENV is unset or "development".
// A missing .env file is not an error.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// Supported values for Config.DBDriver
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Supported values for Config.RealtimeBroker
const (
	BrokerMemory   = "memory"
	BrokerRedis    = "redis"
	BrokerPostgres = "postgres"
	BrokerKafka    = "kafka"
)

// Config is the typed runtime configuration.
type Config struct {
	GoEnv     string
	Port      int
	LogLevel  string
	LogFormat string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUserName string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret string
	JWTIssuer string

	// Realtime
	RealtimeBroker     string
	RedisURL           string
	KafkaBrokers       []string
	KafkaConsumerGroup string

	// Object storage (S3 compatible)
	SpacesAccessKey string
	SpacesSecretKey string
	SpacesBucket    string
	SpacesRegion    string
	SpacesEndpoint  string
	SpacesCDNURL    string

	// HTTP
	AllowedOrigins    string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Background jobs
	CronEnabled       bool
	KeepAliveSchedule string
	CronLogRetention  time.Duration

	// Shared secret for the packet generation job
	ServiceAPIKey string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("GO_ENV", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("REALTIME_BROKER", BrokerMemory)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "course-rooms")
	v.SetDefault("SPACES_REGION", "nyc3")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("CRON_ENABLED", true)
	v.SetDefault("KEEPALIVE_SCHEDULE", "*/20 * * * * *")
	v.SetDefault("CRON_LOG_RETENTION", 30*24*time.Hour)

	v.AutomaticEnv()
	return v
}

// Get builds the configuration from the environment, falling back to defaults.
func Get() (*Config, error) {
	v := newViper()

	cfg := &Config{
		GoEnv:     v.GetString("GO_ENV"),
		Port:      v.GetInt("PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		// Database
		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUserName: v.GetString("DB_USER_NAME"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSL_MODE"),
		// JWT
		JWTSecret: v.GetString("JWT_SECRET"),
		JWTIssuer: v.GetString("JWT_ISSUER"),
		// Realtime
		RealtimeBroker:     strings.ToLower(v.GetString("REALTIME_BROKER")),
		RedisURL:           v.GetString("REDIS_URL"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		// Storage
		SpacesAccessKey: v.GetString("SPACES_ACCESS_KEY"),
		SpacesSecretKey: v.GetString("SPACES_SECRET_KEY"),
		SpacesBucket:    v.GetString("SPACES_BUCKET"),
		SpacesRegion:    v.GetString("SPACES_REGION"),
		SpacesEndpoint:  v.GetString("SPACES_ENDPOINT"),
		SpacesCDNURL:    v.GetString("SPACES_CDN_URL"),
		// HTTP
		AllowedOrigins:    v.GetString("ALLOWED_ORIGINS"),
		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
		// Jobs
		CronEnabled:       v.GetBool("CRON_ENABLED"),
		KeepAliveSchedule: v.GetString("KEEPALIVE_SCHEDULE"),
		CronLogRetention:  v.GetDuration("CRON_LOG_RETENTION"),
		ServiceAPIKey:     v.GetString("SERVICE_API_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	switch c.DBDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.RealtimeBroker {
	case BrokerMemory, BrokerKafka:
	case BrokerRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis broker")
		}
	case BrokerPostgres:
		if c.DBDriver != DriverPostgres {
			return fmt.Errorf("the postgres broker requires DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported REALTIME_BROKER %q", c.RealtimeBroker)
	}

	if c.RealtimeBroker == BrokerKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required for the kafka broker")
	}
	return nil
}

// IsProduction reports whether the server runs with GO_ENV=production.
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost,
		c.DBUserName,
		c.DBPassword,
		c.DBName,
		c.DBPort,
		c.DBSSLMode,
	)
}

// SpacesConfigured reports whether object storage credentials are present.
func (c *Config) SpacesConfigured() bool {
	return c.SpacesAccessKey != "" && c.SpacesSecretKey != "" && c.SpacesBucket != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
