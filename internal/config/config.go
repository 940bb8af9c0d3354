package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Broker drivers understood by the event publisher.
const (
	BrokerDriverLog   = "log"
	BrokerDriverKafka = "kafka"
	BrokerDriverSQS   = "sqs"
	BrokerDriverRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Broker       BrokerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory ticket store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Encoding is "json" or "console".
	Encoding string
	Service  string
}

// AuthConfig defines how caller identity is established.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	TrustIdentityHeaders  bool
}

// BrokerConfig selects and configures the event broker.
type BrokerConfig struct {
	Driver                string
	ClientID              string
	TopicPrefix           string
	Encoding              string
	KafkaBrokers          []string
	SQSQueueURL           string
	SQSRegion             string
	SQSEndpoint           string
	RedisStreamMaxLen     int64
	PublishTimeoutSeconds int
}

// NotificationConfig holds notification sink settings.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("BROKER_DRIVER", BrokerDriverLog))
	switch driver {
	case BrokerDriverLog, BrokerDriverKafka, BrokerDriverSQS, BrokerDriverRedis:
	default:
		return nil, fmt.Errorf("invalid BROKER_DRIVER: %q", driver)
	}

	encoding := strings.ToLower(getEnv("BROKER_ENCODING", "json"))
	if encoding != "json" && encoding != "cbor" {
		return nil, fmt.Errorf("invalid BROKER_ENCODING: %q", encoding)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3002"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
			Service:  getEnv("APP_NAME", "ticket-tracker"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			TrustIdentityHeaders:  getEnvAsBool("AUTH_TRUST_IDENTITY_HEADERS", true),
		},
		Broker: BrokerConfig{
			Driver:                driver,
			ClientID:              getEnv("BROKER_CLIENT_ID", "ticket-tracker"),
			TopicPrefix:           os.Getenv("BROKER_TOPIC_PREFIX"),
			Encoding:              encoding,
			KafkaBrokers:          getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			SQSQueueURL:           os.Getenv("SQS_QUEUE_URL"),
			SQSRegion:             getEnv("SQS_REGION", "us-east-1"),
			SQSEndpoint:           os.Getenv("SQS_ENDPOINT"),
			RedisStreamMaxLen:     int64(getEnvAsInt("REDIS_STREAM_MAX_LEN", 10000)),
			PublishTimeoutSeconds: getEnvAsInt("BROKER_PUBLISH_TIMEOUT_SECONDS", 5),
		},
		Notification: NotificationConfig{
			WebhookURL:            os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 3),
		},
	}

	if cfg.Broker.Driver == BrokerDriverSQS && cfg.Broker.SQSQueueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required when BROKER_DRIVER=sqs")
	}
	if cfg.Broker.Driver == BrokerDriverRedis && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required when BROKER_DRIVER=redis")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PublishTimeout bounds a single broker send.
func (b BrokerConfig) PublishTimeout() time.Duration {
	if b.PublishTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.PublishTimeoutSeconds) * time.Second
}

// WebhookTimeout bounds a single webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
