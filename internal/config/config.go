package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"

	minJWTSecretLength = 32
)

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required")
	ErrShortJWTSecret   = fmt.Errorf("JWT_SECRET must be at least %d characters long", minJWTSecretLength)
)

type Config struct {
	Port        string
	ServiceName string
	Env         string

	StoreBackend  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	KafkaBrokers       []string
	KafkaTopic         string
	NotifierGroup      string
	OutboxPollInterval time.Duration

	JWTSecret      string
	AccessTokenTTL time.Duration
	CORSOrigins    []string

	SMTPHost string
	SMTPPort string
	SMTPFrom string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		zap.L().Warn("dotenv_not_found", zap.String("detail", "relying on process environment"))
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "ec-storefront"),
		Env:         getEnv("ENV", "development"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "storefront"),

		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "ec-events"),
		NotifierGroup:      getEnv("NOTIFIER_GROUP", "email-notifier"),
		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		SMTPHost: getEnv("SMTP_HOST", "localhost"),
		SMTPPort: getEnv("SMTP_PORT", "1025"),
		SMTPFrom: getEnv("SMTP_FROM", "noreply@example.com"),
	}
}

// Validate checks the settings the API cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return ErrShortJWTSecret
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// KafkaEnabled reports whether events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		zap.L().Warn("invalid_duration", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
