// Package config loads the recipe service settings from environment
// variables. Every key has a default; malformed values and invalid
// combinations are reported together by Load so a misconfigured deployment
// fails once with the full list.
//
// Callers that want a .env file loaded do so before Load (see cmd/recipes).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// CORSConfig holds the browser origins allowed to call the API. Empty
// allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config is the full service configuration.
type Config struct {
	// HTTP server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration // graceful drain on SIGTERM
	MaxHeaderBytes    int
	MaxBodyBytes      int64 // request body cap; larger bodies get 413
	GinMode           string

	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string // normalized: leading '/', no trailing '/'

	// Storage
	DBDriver string // sqlite|postgres
	DBPath   string // SQLite file
	DBDSN    string // Postgres DSN

	// Per-caller token bucket
	RateRPS       float64
	RateBurst     int
	RateWriteCost int // tokens spent by create, update and delete

	CORS     CORSConfig
	Security SecurityConfig

	// How long an Idempotency-Key replays the recipe it created.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for program start-up; it panics on error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
// The returned error joins every malformed value and every failed check.
func Load() (Config, error) {
	var env envReader

	cfg := Config{
		Port:              env.str("PORT", "8080"),
		ReadTimeout:       env.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: env.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      env.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       env.dur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   env.dur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    env.integer("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(env.integer("MAX_BODY_BYTES", 1<<20)),
		GinMode:           normalizeGinMode(env.str("GIN_MODE", "release")),

		LogLevel:       normalizeLogLevel(env.str("LOG_LEVEL", "info")),
		LogPretty:      env.boolean("LOG_PRETTY", false),
		SwaggerEnabled: env.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(env.str("API_BASE_PATH", "/api/v1")),

		DBDriver: strings.ToLower(strings.TrimSpace(env.str("DB_DRIVER", DriverSQLite))),
		DBPath:   env.str("DB_PATH", "recipes.db"),
		DBDSN:    env.str("DB_DSN", ""),

		RateRPS:       env.float("RATE_RPS", 5.0),
		RateBurst:     env.integer("RATE_BURST", 10),
		RateWriteCost: env.integer("RATE_WRITE_COST", 2),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(env.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: env.boolean("ENABLE_HSTS", false),
			HSTSMaxAge: env.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: env.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     env.boolean("OTEL_ENABLED", false),
			Endpoint:    env.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    env.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: env.str("OTEL_SERVICE_NAME", "go-recipe-backend"),
			SampleRatio: env.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if err := errors.Join(env.errs, cfg.Validate()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field rules.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0 && c.ShutdownTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.MaxBodyBytes > 0, "MAX_BODY_BYTES must be > 0")

	switch c.DBDriver {
	case DriverSQLite:
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case DriverPostgres:
		check(strings.TrimSpace(c.DBDSN) != "", "DB_DSN must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.RateWriteCost >= 1 && c.RateWriteCost <= c.RateBurst, "RATE_WRITE_COST must be in [1, RATE_BURST]")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// envReader reads typed values and remembers every malformed one.
// Unset and empty variables take the default silently.
type envReader struct {
	errs error
}

func (e *envReader) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(k, v, kind string) {
	e.errs = errors.Join(e.errs, fmt.Errorf("%s: invalid %s %q", k, kind, v))
}

func (e *envReader) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *envReader) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, "number")
		return def
	}
	return f
}

func (e *envReader) integer(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "integer")
		return def
	}
	return i
}

func (e *envReader) boolean(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "boolean")
	return def
}

func (e *envReader) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "duration")
		return def
	}
	return d
}

// normalizeLogLevel lowercases lvl and accepts "warning" for "warn".
func normalizeLogLevel(lvl string) string {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		return "warn"
	}
	return lvl
}

// normalizeGinMode maps anything other than debug or test to release.
func normalizeGinMode(m string) string {
	switch m = strings.ToLower(strings.TrimSpace(m)); m {
	case "debug", "test":
		return m
	}
	return "release"
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, except
// for the root path.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
