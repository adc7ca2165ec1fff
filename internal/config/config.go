// Package config loads settings from defaults, an optional TOML file and
// the environment, in that order of precedence (last wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StorageS3       = "s3"
	StoragePostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort      string        `toml:"server-port"`
	ShutdownTimeout time.Duration `toml:"shutdown-timeout"`

	// OpenTelemetry settings. An empty endpoint disables export.
	OTLPEndpoint string `toml:"otlp-endpoint"`
	ServiceName  string `toml:"service-name"`
	Environment  string `toml:"environment"`

	// Local logging
	LogLevel  string `toml:"log-level"`
	PrettyLog bool   `toml:"pretty-log"`

	// Storage settings
	StorageBackend string `toml:"storage"`
	StorageKey     string `toml:"storage-key"`
	DataDir        string `toml:"data-dir"`

	RedisAddr     string `toml:"redis-addr"`
	RedisPassword string `toml:"redis-password"`
	RedisDB       int    `toml:"redis-db"`

	S3Bucket   string `toml:"s3-bucket"`
	S3Region   string `toml:"s3-region"`
	S3Endpoint string `toml:"s3-endpoint"`
	S3Prefix   string `toml:"s3-prefix"`

	DatabaseURL string `toml:"database-url"`

	// NATSURL enables change events when set.
	NATSURL string `toml:"nats-url"`

	IDFormat string `toml:"id-format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerPort:      "8080",
		ShutdownTimeout: 30 * time.Second,
		ServiceName:     "go-todo",
		Environment:     "development",
		LogLevel:        "info",
		StorageBackend:  StorageFile,
		StorageKey:      "todos-app-data",
		DataDir:         ".",
		RedisAddr:       "localhost:6379",
		IDFormat:        "uuid",
	}
}

// Load returns configuration from defaults, the TOML file named by
// TODO_CONFIG (if any) and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TODO_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("parse config file %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StorageBackend = getEnv("TODO_STORAGE", cfg.StorageBackend)
	cfg.StorageKey = getEnv("TODO_STORAGE_KEY", cfg.StorageKey)
	cfg.DataDir = getEnv("TODO_DATA_DIR", cfg.DataDir)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.S3Bucket = getEnv("TODO_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getEnv("AWS_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnv("TODO_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Prefix = getEnv("TODO_S3_PREFIX", cfg.S3Prefix)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.IDFormat = getEnv("TODO_ID_FORMAT", cfg.IDFormat)

	var err error
	if cfg.PrettyLog, err = getEnvBool("LOG_PRETTY", cfg.PrettyLog); err != nil {
		return err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks enumerated and required settings.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageFile, StorageRedis, StorageS3, StoragePostgres:
	default:
		return fmt.Errorf("invalid storage backend %q (want memory, file, redis, s3 or postgres)", c.StorageBackend)
	}
	switch c.IDFormat {
	case "uuid", "nanoid":
	default:
		return fmt.Errorf("invalid id format %q (want uuid or nanoid)", c.IDFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.StorageBackend == StorageS3 && c.S3Bucket == "" {
		return fmt.Errorf("storage backend s3 requires TODO_S3_BUCKET")
	}
	if c.StorageBackend == StoragePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("storage backend postgres requires DATABASE_URL")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// TelemetryEnabled reports whether an OTLP collector is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OTLPEndpoint != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
