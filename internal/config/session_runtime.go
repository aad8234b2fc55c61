package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultJWTAccessTTL       = "15m"
	defaultSessionIdleTimeout = "30m"
	defaultHistoryLimit       = "5"
	defaultStrictCheck        = "false"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultRefreshTokenPepper = "change-me-refresh-pepper"
)

type SessionRuntimeConfig struct {
	AppEnv               string
	JWTSecret            string
	JWTAccessTTL         time.Duration
	RefreshTokenPepper   string
	SessionIdleTimeout   time.Duration
	RotationHistoryLimit int
	StrictSessionCheck   bool
}

func LoadSessionRuntimeConfig() (*SessionRuntimeConfig, error) {
	cfg := &SessionRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	cfg.SessionIdleTimeout, err = parseDurationEnv("SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout)
	if err != nil {
		return nil, err
	}

	cfg.RotationHistoryLimit, err = parseIntEnv("ROTATION_HISTORY_LIMIT", defaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	cfg.StrictSessionCheck = parseBoolEnv("STRICT_SESSION_CHECK", defaultStrictCheck)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("session config: accessTTL=%s, idleTimeout=%s, historyLimit=%d, strictCheck=%t",
		cfg.JWTAccessTTL, cfg.SessionIdleTimeout, cfg.RotationHistoryLimit, cfg.StrictSessionCheck)

	return cfg, nil
}

func validateConfig(cfg *SessionRuntimeConfig) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be > 0")
	}
	if cfg.RotationHistoryLimit <= 0 {
		return fmt.Errorf("ROTATION_HISTORY_LIMIT must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshTokenPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
