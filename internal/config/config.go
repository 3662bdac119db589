// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP gateway listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required for the server, migrate, and seed commands.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for the sliding-window rate-limit counter (e.g. localhost:6379).
	// Empty disables Redis; the limiter falls back to counting attempt events in Postgres.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// JWTPublicKey is the PEM-encoded public key or path to file; used to validate bearer credentials.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim on bearer credentials.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim on bearer credentials.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// GeoLookupURL is the base URL of the IP geolocation collaborator (e.g. http://ip-api.com/json).
	GeoLookupURL string `mapstructure:"GEO_LOOKUP_URL"`
	// GeoLookupTimeout is the max time for one geolocation lookup (e.g. "3s").
	GeoLookupTimeout string `mapstructure:"GEO_LOOKUP_TIMEOUT"`

	// TokenTTL is the default anti-forgery token lifetime (e.g. "1h").
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// TokenRotationTTL is the shortened lifetime when the caller requests rotation (e.g. "30m").
	TokenRotationTTL string `mapstructure:"TOKEN_ROTATION_TTL"`

	// RetentionInterval is how often the event optimizer compaction pass runs (e.g. "15m").
	RetentionInterval string `mapstructure:"RETENTION_INTERVAL"`

	// LogLevel is the zap level: debug|info|warn|error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is the zap encoding: json|console.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Event pipeline (optional). When Kafka brokers are set, the recorder also emits events to Kafka.
	// EventKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	EventKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventKafkaTopic is the Kafka topic for security events (default trustgate-events).
	EventKafkaTopic string `mapstructure:"EVENT_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "trustgate-auth")
	v.SetDefault("JWT_AUDIENCE", "trustgate-api")
	v.SetDefault("GEO_LOOKUP_URL", "http://ip-api.com/json")
	v.SetDefault("GEO_LOOKUP_TIMEOUT", "3s")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("TOKEN_ROTATION_TTL", "30m")
	v.SetDefault("RETENTION_INTERVAL", "15m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENT_KAFKA_TOPIC", "trustgate-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "trustgate-event-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	return &cfg, nil
}

// GeoTimeout parses GeoLookupTimeout as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) GeoTimeout() time.Duration {
	d, err := time.ParseDuration(c.GeoLookupTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// TokenLifetime parses TokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) TokenLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// TokenRotationLifetime parses TokenRotationTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) TokenRotationLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenRotationTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// CompactionInterval parses RetentionInterval as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) CompactionInterval() time.Duration {
	d, err := time.ParseDuration(c.RetentionInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// EventKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka emission is enabled (non-empty list) and to create the producer.
func (c *Config) EventKafkaBrokersList() []string {
	if c == nil || c.EventKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
