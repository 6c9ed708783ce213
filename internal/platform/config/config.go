package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Payments    PaymentsConfig

	// ReleaseRequestTTL bounds how long a pending release request stays
	// approvable. Zero means requests never expire.
	ReleaseRequestTTL time.Duration

	// SummaryCacheTTL bounds staleness of cached escrow summaries.
	SummaryCacheTTL time.Duration
}

// RedisConfig captures Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PaymentsConfig points at the settlement provider. An empty base URL selects
// the in-process fake, which is only suitable for development.
type PaymentsConfig struct {
	BaseURL string
	APIKey  string
}

// KafkaConfig captures event stream settings. Empty brokers disable Kafka.
type KafkaConfig struct {
	Brokers    []string
	EventTopic string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CONVEYR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	eventTopic := os.Getenv("KAFKA_EVENT_TOPIC")
	if eventTopic == "" {
		eventTopic = "conveyr.escrow.events"
	}
	auditTopic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "conveyr.escrow.audit"
	}

	return Server{
		Addr:          addr,
		AdminToken:    os.Getenv("CONVEYR_ADMIN_TOKEN"),
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("KAFKA_BROKERS"),
			EventTopic: eventTopic,
			AuditTopic: auditTopic,
		},
		Payments: PaymentsConfig{
			BaseURL: os.Getenv("PAYMENTS_BASE_URL"),
			APIKey:  os.Getenv("PAYMENTS_API_KEY"),
		},
		ReleaseRequestTTL: envDuration("ESCROW_RELEASE_REQUEST_TTL", 0),
		SummaryCacheTTL:   envDuration("ESCROW_SUMMARY_CACHE_TTL", 30*time.Second),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
