package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. It is loaded once in main and
// passed down explicitly; components never read the environment themselves.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	SessionTTL    time.Duration

	Redis RedisConfig

	Provider ProviderConfig

	// Webhook shared secret for the hosted-API generation.
	WebhookVerifyToken string

	// Kafka audit trail for inbound webhook events; disabled when empty.
	AuditBrokers []string
	AuditTopic   string

	PassTemplatePath string

	SyncInterval     time.Duration
	DispatchInterval time.Duration
	ReapInterval     time.Duration
	StatusInterval   time.Duration
}

// RedisConfig holds connection settings for the live-event hub and the session
// revocation list. Redis is optional; in-process fallbacks are used when URL is
// empty.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig selects and configures the messaging provider generation.
type ProviderConfig struct {
	// Kind is "webclient" (self-hosted bridge) or "cloudapi" (hosted Business API).
	Kind string

	// webclient bridge.
	BridgeURL string

	// cloudapi credentials.
	APIBaseURL    string
	PhoneNumberID string
	AccessToken   string

	CountryCode string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          getenv("REGNOTIFY_ADDR", ":6147"),
		DatabaseURL:   getenv("REGNOTIFY_DATABASE_URL", "postgres://localhost:5432/regnotify?sslmode=disable"),
		JWTSigningKey: getenv("REGNOTIFY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:    getDuration("REGNOTIFY_SESSION_TTL", 24*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("REGNOTIFY_REDIS_URL"),
			PoolSize:     getInt("REGNOTIFY_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REGNOTIFY_REDIS_MIN_IDLE", 2),
			DialTimeout:  getDuration("REGNOTIFY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REGNOTIFY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REGNOTIFY_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			Kind:          getenv("REGNOTIFY_PROVIDER", "webclient"),
			BridgeURL:     getenv("REGNOTIFY_BRIDGE_URL", "http://localhost:3000"),
			APIBaseURL:    getenv("REGNOTIFY_CLOUD_API_URL", "https://graph.facebook.com/v19.0"),
			PhoneNumberID: os.Getenv("REGNOTIFY_CLOUD_PHONE_ID"),
			AccessToken:   os.Getenv("REGNOTIFY_CLOUD_ACCESS_TOKEN"),
			CountryCode:   getenv("REGNOTIFY_COUNTRY_CODE", "91"),
		},
		WebhookVerifyToken: os.Getenv("REGNOTIFY_WEBHOOK_TOKEN"),
		AuditBrokers:       splitNonEmpty(os.Getenv("REGNOTIFY_AUDIT_BROKERS")),
		AuditTopic:         getenv("REGNOTIFY_AUDIT_TOPIC", "regnotify.webhook.audit"),
		PassTemplatePath:   getenv("REGNOTIFY_PASS_TEMPLATE", "assets/info-card.png"),
		SyncInterval:       getDuration("REGNOTIFY_SYNC_INTERVAL", 5*time.Second),
		DispatchInterval:   getDuration("REGNOTIFY_DISPATCH_INTERVAL", 5*time.Second),
		ReapInterval:       getDuration("REGNOTIFY_REAP_INTERVAL", 5*time.Minute),
		StatusInterval:     getDuration("REGNOTIFY_STATUS_INTERVAL", 10*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
