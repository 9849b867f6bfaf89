// Package config loads the template service settings from environment
// variables. Unset or empty variables take their defaults; set but malformed
// values are reported as errors rather than silently replaced, and Load
// returns every problem it found in one joined error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects and addresses the template store.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH: SQLite file
	URL    string // DATABASE_URL: Postgres DSN
}

// RedisConfig configures the optional active-template cache.
// An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures the optional template lifecycle event publisher.
// No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// OTELConfig defines OpenTelemetry tracing settings.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string  // host:port of the OTLP gRPC collector
	Insecure    bool    // plaintext gRPC
	ServiceName string  // also the otelgin server name
	SampleRatio float64 // in [0,1]
}

// Config holds all configuration values for the application.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DB DBConfig

	VersionMaxRetries int    // attempts for a create that loses a version race
	SeedFile          string // optional YAML file of templates to bootstrap

	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	Redis RedisConfig
	Kafka KafkaConfig

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	e := &env{lookup: os.LookupEnv}
	cfg := Config{
		Port:              strings.TrimSpace(e.str("PORT", "8080")),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(e.str("GIN_MODE", "release")),

		LogLevel:       logLevel(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(strings.TrimSpace(e.str("DB_DRIVER", "sqlite"))),
			Path:   e.str("DB_PATH", "templates.db"),
			URL:    e.str("DATABASE_URL", ""),
		},

		VersionMaxRetries: e.int("VERSION_MAX_RETRIES", 5),
		SeedFile:          e.str("SEED_FILE", ""),

		RateRPS:   e.float("RATE_RPS", 5.0),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
			TTL:      e.dur("CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(e.str("KAFKA_BROKERS", "")),
			Topic:   e.str("KAFKA_TOPIC", "template-events"),
		},

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "template-service"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

// validate returns one error per violated constraint.
func (cfg Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	port, err := strconv.Atoi(cfg.Port)
	check(err == nil && port > 0 && port <= 65535, "PORT must be a TCP port number")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch cfg.DB.Driver {
	case "sqlite":
	case "postgres":
		check(strings.TrimSpace(cfg.DB.URL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(cfg.VersionMaxRetries >= 1, "VERSION_MAX_RETRIES must be >= 1")
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.Redis.Addr == "" || cfg.Redis.TTL > 0, "CACHE_TTL must be > 0 when REDIS_ADDR is set")
	check(cfg.Redis.DB >= 0, "REDIS_DB must be >= 0")
	check(len(cfg.Kafka.Brokers) == 0 || strings.TrimSpace(cfg.Kafka.Topic) != "",
		"KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed variables and records parse failures.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (e *env) fail(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: expected %s", k, v, want))
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "an integer")
		return def
	}
	return i
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, "a number")
		return def
	}
	return f
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "a boolean")
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "a duration such as 30s")
		return def
	}
	return d
}

// ginMode falls back to release for unknown modes.
func ginMode(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "debug", "release", "test":
		return s
	}
	return "release"
}

func logLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return "warn"
	}
	return s
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, except root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
