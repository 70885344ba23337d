package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	KeycloakIssuer        string
	KeycloakClientID      string
	KeycloakRedirectURL   string
	KeycloakPublicBaseURL string

	RedisAddr     string
	RedisPassword string

	DatabaseDSN string

	SessionTTL          time.Duration // absolute session lifetime
	ProfileFetchTimeout time.Duration // 0 disables the bound
	GuardWait           time.Duration // how long a guard waits on a loading snapshot
	ResolverCacheSize   int

	AdminEmails  []string
	CookieSecure bool

	LoginRate  float64 // requests per second per client IP
	LoginBurst int
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppPort: getEnv("APP_PORT", "8080"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		KeycloakIssuer:        getEnv("KEYCLOAK_ISSUER", ""),
		KeycloakClientID:      getEnv("KEYCLOAK_CLIENT_ID", ""),
		KeycloakRedirectURL:   getEnv("KEYCLOAK_REDIRECT_URL", ""),
		KeycloakPublicBaseURL: getEnv("KEYCLOAK_PUBLIC_BASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		AdminEmails: splitList(getEnv("ADMIN_EMAILS", "")),
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ProfileFetchTimeout, err = durationEnv("PROFILE_FETCH_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GuardWait, err = durationEnv("GUARD_WAIT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ResolverCacheSize, err = intEnv("RESOLVER_CACHE_SIZE", 4096); err != nil {
		return Config{}, err
	}
	if cfg.LoginBurst, err = intEnv("LOGIN_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = boolEnv("COOKIE_SECURE", true); err != nil {
		return Config{}, err
	}

	cfg.LoginRate = 1
	if v := getEnv("LOGIN_RATE", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE: %w", err)
		}
		cfg.LoginRate = f
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the service cannot start without.
func (c Config) Validate() error {
	if c.AppPort == "" {
		return fmt.Errorf("APP_PORT cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.ProfileFetchTimeout < 0 {
		return fmt.Errorf("PROFILE_FETCH_TIMEOUT cannot be negative")
	}
	if c.GuardWait < 0 {
		return fmt.Errorf("GUARD_WAIT cannot be negative")
	}
	if c.ResolverCacheSize <= 0 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must be positive")
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE and LOGIN_BURST must be positive")
	}
	return nil
}

// GoogleEnabled reports whether the Google provider is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// KeycloakEnabled reports whether the Keycloak provider is configured.
func (c Config) KeycloakEnabled() bool {
	return c.KeycloakIssuer != "" && c.KeycloakClientID != "" && c.KeycloakRedirectURL != ""
}

// getEnv reads key, honouring a KEY_FILE indirection for secrets.
func getEnv(key, fallback string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
