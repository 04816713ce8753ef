package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars and an optional YAML file.
type Config struct {
	Port             string        `yaml:"port"`
	StorageDriver    string        `yaml:"storageDriver"`
	DatabaseURL      string        `yaml:"databaseURL"`
	SQLitePath       string        `yaml:"sqlitePath"`
	JWTSecret        string        `yaml:"jwtSecret"`
	JWTIssuer        string        `yaml:"jwtIssuer"`
	JWTTTL           time.Duration `yaml:"-"`
	JWTTTLMinutes    int           `yaml:"jwtTTLMinutes"`
	CORSOrigins      []string      `yaml:"corsOrigins"`
	LogLevel         string        `yaml:"logLevel"`
	RedisAddr        string        `yaml:"redisAddr"`
	RedisPassword    string        `yaml:"redisPassword"`
	RateLimitBurst   int           `yaml:"rateLimitBurst"`
	RateLimitWindow  time.Duration `yaml:"-"`
	RateLimitSeconds int           `yaml:"rateLimitWindowSeconds"`
	WSMaxMessageSize int64         `yaml:"wsMaxMessageSize"`
}

// Load reads CONFIG_FILE (when set), applies environment overrides and validates.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Port = fallback(os.Getenv("PORT"), fallback(cfg.Port, "8080"))
	cfg.StorageDriver = strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), fallback(cfg.StorageDriver, DriverPostgres)))
	cfg.DatabaseURL = fallback(os.Getenv("DATABASE_URL"), cfg.DatabaseURL)
	cfg.SQLitePath = fallback(os.Getenv("SQLITE_PATH"), fallback(cfg.SQLitePath, "chat.db"))
	cfg.JWTSecret = fallback(os.Getenv("JWT_SECRET"), cfg.JWTSecret)
	cfg.JWTIssuer = fallback(os.Getenv("JWT_ISSUER"), fallback(cfg.JWTIssuer, "chat-backend"))
	cfg.LogLevel = strings.ToLower(fallback(os.Getenv("LOG_LEVEL"), fallback(cfg.LogLevel, "info")))
	cfg.RedisAddr = fallback(os.Getenv("REDIS_ADDR"), cfg.RedisAddr)
	cfg.RedisPassword = fallback(os.Getenv("REDIS_PASSWORD"), cfg.RedisPassword)

	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" || len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = parseCSV(fallback(origins, "*"))
	}

	cfg.JWTTTLMinutes = positiveInt(os.Getenv("JWT_TTL_MINUTES"), cfg.JWTTTLMinutes, 60)
	cfg.JWTTTL = time.Duration(cfg.JWTTTLMinutes) * time.Minute
	cfg.RateLimitBurst = positiveInt(os.Getenv("RATE_LIMIT_BURST"), cfg.RateLimitBurst, 20)
	cfg.RateLimitSeconds = positiveInt(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), cfg.RateLimitSeconds, 10)
	cfg.RateLimitWindow = time.Duration(cfg.RateLimitSeconds) * time.Second
	cfg.WSMaxMessageSize = int64(positiveInt(os.Getenv("WS_MAX_MESSAGE_SIZE"), int(cfg.WSMaxMessageSize), 4096))

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// positiveInt prefers the env value, then the file value, then def.
func positiveInt(env string, file, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(env)); err == nil && n > 0 {
		return n
	}
	if file > 0 {
		return file
	}
	return def
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
