package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Flip API hosts selected by the live-mode flag.
const (
	LiveBaseURL    = "https://bigflip.id/api"
	SandboxBaseURL = "https://bigflip.id/big_sandbox_api"

	// DefaultDevRedirector is the public redirector used to satisfy Flip's
	// redirect-URL reachability validation when the store runs on a
	// non-public host.
	DefaultDevRedirector = "https://flip-id.github.io/checkout-redirection/"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	PublicBaseURL string
	CartURL       string

	LiveMode     bool
	RedirectMode bool
	BusinessID   string

	LiveSecretKey        string
	SandboxSecretKey     string
	LiveValidationKey    string
	SandboxValidationKey string

	LogAPIRequests bool
	LogCallbacks   bool
	LogDebug       bool
	LogErrors      bool

	DevRedirectorURL string

	FlipTimeout     time.Duration
	FlipMaxAttempts int
	FlipBackoffBase time.Duration

	CallbackLockTTL   time.Duration
	CallbackReplayTTL time.Duration

	CheckoutRateLimit string

	NotifyEmailEnabled bool
	NotifyEmailFrom    string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		PublicBaseURL: strings.TrimRight(k.String("PUBLIC_BASE_URL"), "/"),
		CartURL:       valueOrDefault(k.String("CART_URL"), "/checkout/cart"),

		LiveMode:     parseBool(k.String("FLIP_LIVE_MODE")),
		RedirectMode: parseBool(k.String("FLIP_REDIRECT_MODE")),
		BusinessID:   strings.TrimSpace(k.String("FLIP_BUSINESS_ID")),

		LiveSecretKey:        k.String("FLIP_LIVE_SECRET_KEY"),
		SandboxSecretKey:     k.String("FLIP_SANDBOX_SECRET_KEY"),
		LiveValidationKey:    k.String("FLIP_LIVE_VALIDATION_KEY"),
		SandboxValidationKey: k.String("FLIP_SANDBOX_VALIDATION_KEY"),

		LogAPIRequests: parseBoolDefault(k.String("LOG_API_REQUESTS"), true),
		LogCallbacks:   parseBoolDefault(k.String("LOG_CALLBACKS"), true),
		LogDebug:       parseBool(k.String("LOG_DEBUG")),
		LogErrors:      parseBoolDefault(k.String("LOG_ERRORS"), true),

		DevRedirectorURL: valueOrDefault(k.String("FLIP_DEV_REDIRECTOR_URL"), DefaultDevRedirector),

		FlipTimeout:     parseDuration(k.String("FLIP_HTTP_TIMEOUT"), "15s"),
		FlipMaxAttempts: parseInt(k.String("FLIP_HTTP_MAX_ATTEMPTS"), 3),
		FlipBackoffBase: parseDuration(k.String("FLIP_HTTP_BACKOFF_BASE"), "250ms"),

		CallbackLockTTL:   parseDuration(k.String("CALLBACK_LOCK_TTL"), "30s"),
		CallbackReplayTTL: parseDuration(k.String("CALLBACK_REPLAY_TTL"), "24h"),

		CheckoutRateLimit: valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "30-M"),

		NotifyEmailEnabled: parseBool(k.String("NOTIFY_EMAIL_ENABLED")),
		NotifyEmailFrom:    valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@localhost"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BusinessID == "" {
		return nil, errors.New("FLIP_BUSINESS_ID is required")
	}
	if cfg.APISecretKey() == "" {
		return nil, fmt.Errorf("missing Flip API secret key for %s mode", cfg.ModeLabel())
	}
	if cfg.ValidationKey() == "" {
		return nil, fmt.Errorf("missing Flip validation key for %s mode", cfg.ModeLabel())
	}

	return cfg, nil
}

// BaseURL returns the Flip API host for the configured mode.
func (c *Config) BaseURL() string {
	if c.LiveMode {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

// APISecretKey returns the outbound API secret for the configured mode.
func (c *Config) APISecretKey() string {
	if c.LiveMode {
		return c.LiveSecretKey
	}
	return c.SandboxSecretKey
}

// ValidationKey returns the inbound webhook shared secret for the configured mode.
func (c *Config) ValidationKey() string {
	if c.LiveMode {
		return c.LiveValidationKey
	}
	return c.SandboxValidationKey
}

// ModeLabel names the active credential mode for log and error messages.
func (c *Config) ModeLabel() string {
	if c.LiveMode {
		return "live"
	}
	return "sandbox"
}

// FinishURL builds the hosted-payment return URL for an order reference.
func (c *Config) FinishURL(orderRef string) string {
	return c.PublicBaseURL + "/api/v1/payment/finish?state=" + orderRef
}

// CallbackURL returns the webhook URL operators register with Flip.
func (c *Config) CallbackURL() string {
	return c.PublicBaseURL + "/api/v1/payment/callback"
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

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
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
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
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
