package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	DevMode            bool
	Port               string
	DatabaseURL        string
	RedisURL           string
	MigrateOnStart     bool
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string

	PaymentStoreID         string
	PaymentStorePassword   string
	PaymentBaseURL         string
	PaymentSandbox         bool
	PaymentCallbackBaseURL string

	UpstreamTimeout time.Duration
	UpstreamRPS     float64

	WebhookRateLimit  int
	WebhookRateWindow time.Duration
	APIRateLimit      string
	IdempotencyTTL    time.Duration
	BodyLimitBytes    int64
	ReplayTTL         time.Duration

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string

	WorkerConcurrency int
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	appEnv := strings.ToLower(valueOrDefault(k.String("APP_ENV"), "development"))
	cfg := &Config{
		AppEnv:             appEnv,
		DevMode:            appEnv == "development",
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "toko-commerce"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "toko-commerce-api"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PaymentStoreID:         k.String("PAYMENT_STORE_ID"),
		PaymentStorePassword:   k.String("PAYMENT_STORE_PASSWORD"),
		PaymentBaseURL:         k.String("PAYMENT_BASE_URL"),
		PaymentSandbox:         parseBoolDefault(k.String("PAYMENT_SANDBOX"), true),
		PaymentCallbackBaseURL: strings.TrimRight(valueOrDefault(k.String("PAYMENT_CALLBACK_BASE_URL"), "http://localhost:8080"), "/"),

		UpstreamTimeout: parseDuration(k.String("UPSTREAM_TIMEOUT"), "10s"),
		UpstreamRPS:     parseFloat(k.String("UPSTREAM_RPS"), 20),

		WebhookRateLimit:  parseInt(k.String("WEBHOOK_RATE_LIMIT"), 60),
		WebhookRateWindow: parseDuration(k.String("WEBHOOK_RATE_WINDOW"), "1m"),
		APIRateLimit:      valueOrDefault(k.String("API_RATE_LIMIT"), "300-M"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		ReplayTTL:         parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofUser:        k.String("SECURE_PPROF_BASIC_AUTH_USER"),
		PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 10),
		ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
	}

	if cfg.PaymentBaseURL == "" {
		if cfg.PaymentSandbox {
			cfg.PaymentBaseURL = "https://sandbox.sslcommerz.com"
		} else {
			cfg.PaymentBaseURL = "https://securepay.sslcommerz.com"
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
