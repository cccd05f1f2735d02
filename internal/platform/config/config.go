package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	LogLevel        slog.Level
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Policy      PolicyConfig
	Gateway     GatewayConfig
	Notify      NotifyConfig
	RateLimit   RateLimitConfig
	StorageDir  string

	MaxUploadBytes int64
}

// RedisConfig configures the webhook dedupe client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DedupeTTL    time.Duration
}

// KafkaConfig configures the activity relay. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	Partitions    int32
	Replicas      int16
	RelayInterval time.Duration
	RelayBatch    int
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	InvitationTTL time.Duration
}

// GatewayConfig holds the hosted checkout base URL and the shared secret
// used to sign gateway webhooks. An empty secret skips signature checks.
// GatewayConfig points at the payment gateway. Webhooks are rejected when
// WebhookSecret is empty unless AllowUnsignedWebhooks is set.
type GatewayConfig struct {
	BaseURL               string
	WebhookSecret         string
	AllowUnsignedWebhooks bool
}

// NotifyConfig points at the outbound mail service. An empty URL falls back
// to logging notifications.
type NotifyConfig struct {
	URL              string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// RateLimitConfig bounds token resolution attempts per client IP.
type RateLimitConfig struct {
	ResolveLimit  int
	ResolveWindow time.Duration
}

type PolicyConfig struct {
	ExpirySweepInterval time.Duration
	ExpiryBatchSize     int
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Every value has a default suitable for local runs.
func FromEnv() Server {
	return Server{
		Addr:            envString("LEASECOVER_ADDR", ":8080"),
		LogLevel:        envLevel("LOG_LEVEL", slog.LevelInfo),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			DedupeTTL:    envDuration("WEBHOOK_DEDUPE_TTL", 72*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       envList("KAFKA_BROKERS"),
			Topic:         envString("KAFKA_ACTIVITY_TOPIC", "policy.activities"),
			Partitions:    int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			Replicas:      int16(envInt("KAFKA_TOPIC_REPLICAS", 1)),
			RelayInterval: envDuration("RELAY_INTERVAL", 2*time.Second),
			RelayBatch:    envInt("RELAY_BATCH_SIZE", 100),
		},
		Auth: AuthConfig{
			// Development default; production must override it.
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envString("JWT_ISSUER", "leasecover"),
			Audience:      envString("JWT_AUDIENCE", "leasecover-api"),
			InvitationTTL: envDuration("INVITATION_TTL", 7*24*time.Hour),
		},
		Policy: PolicyConfig{
			ExpirySweepInterval: envDuration("EXPIRY_SWEEP_INTERVAL", time.Hour),
			ExpiryBatchSize:     envInt("EXPIRY_BATCH_SIZE", 100),
		},
		Gateway: GatewayConfig{
			BaseURL:               envString("GATEWAY_BASE_URL", "https://checkout.example.test"),
			WebhookSecret:         os.Getenv("GATEWAY_WEBHOOK_SECRET"),
			AllowUnsignedWebhooks: envBool("GATEWAY_ALLOW_UNSIGNED_WEBHOOKS"),
		},
		Notify: NotifyConfig{
			URL:              os.Getenv("NOTIFY_URL"),
			APIKey:           os.Getenv("NOTIFY_API_KEY"),
			Timeout:          envDuration("NOTIFY_TIMEOUT", 5*time.Second),
			FailureThreshold: envInt("NOTIFY_FAILURE_THRESHOLD", 5),
			SuccessThreshold: envInt("NOTIFY_SUCCESS_THRESHOLD", 3),
		},
		RateLimit: RateLimitConfig{
			ResolveLimit:  envInt("RESOLVE_RATE_LIMIT", 20),
			ResolveWindow: envDuration("RESOLVE_RATE_WINDOW", time.Minute),
		},
		StorageDir:     envString("STORAGE_DIR", ""),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv(key)))); err != nil {
		return fallback
	}
	return level
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
