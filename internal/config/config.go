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
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	DBAutoMigrate      bool

	MondialRelayEndpoint  string
	LaPosteBaseURL        string
	RelayPointsMaxResults int

	Outbound   Outbound
	RelayLimit RateLimit
	CarrierEnv CarrierEnv
}

// Outbound tunes the HTTP client shared by every carrier API call.
type Outbound struct {
	Timeout            time.Duration
	RetryMaxAttempts   int
	RetryBase          time.Duration
	RetryJitter        float64
	CircuitMinRequests int
	CircuitFailureRate float64
	CircuitOpenFor     time.Duration
}

// RateLimit configures the sliding window applied to public relay searches.
type RateLimit struct {
	Window time.Duration
	Max    int
}

// CarrierEnv holds the credential fallbacks read from the environment. Values stored
// in the database take precedence.
type CarrierEnv struct {
	MondialRelayEnseigne   string
	MondialRelayPrivateKey string
	LaPosteAPIKey          string
	ColissimoContract      string
	ColissimoPassword      string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backend-toko"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "toko-admin"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),

		MondialRelayEndpoint:  valueOrDefault(k.String("MONDIAL_RELAY_ENDPOINT"), "https://api.mondialrelay.com/Web_Services.asmx"),
		LaPosteBaseURL:        valueOrDefault(k.String("LAPOSTE_API_BASE_URL"), "https://api.laposte.fr"),
		RelayPointsMaxResults: parseInt(k.String("RELAY_POINTS_MAX_RESULTS"), 10),

		Outbound: Outbound{
			Timeout:            parseDuration(k.String("OUTBOUND_TIMEOUT"), "8s"),
			RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 2),
			RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
			RetryJitter:        parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
			CircuitMinRequests: parseInt(k.String("CIRCUIT_CARRIER_MIN_REQ"), 5),
			CircuitFailureRate: parseFloat(k.String("CIRCUIT_CARRIER_FAILURE_RATE"), 0.5),
			CircuitOpenFor:     parseDuration(k.String("CIRCUIT_CARRIER_OPEN_FOR"), "30s"),
		},
		RelayLimit: RateLimit{
			Window: parseDuration(k.String("RELAY_RATE_LIMIT_WINDOW"), "1m"),
			Max:    parseInt(k.String("RELAY_RATE_LIMIT_MAX"), 30),
		},
		CarrierEnv: CarrierEnv{
			MondialRelayEnseigne:   strings.TrimSpace(k.String("MONDIAL_RELAY_ENSEIGNE")),
			MondialRelayPrivateKey: strings.TrimSpace(k.String("MONDIAL_RELAY_KEY")),
			LaPosteAPIKey:          strings.TrimSpace(k.String("LAPOSTE_API_KEY")),
			ColissimoContract:      strings.TrimSpace(k.String("COLISSIMO_CONTRACT")),
			ColissimoPassword:      strings.TrimSpace(k.String("COLISSIMO_PASSWORD")),
		},
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
	if cfg.RelayPointsMaxResults <= 0 || cfg.RelayPointsMaxResults > 30 {
		return nil, fmt.Errorf("RELAY_POINTS_MAX_RESULTS must be between 1 and 30, got %d", cfg.RelayPointsMaxResults)
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

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
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
