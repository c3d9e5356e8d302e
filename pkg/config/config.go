package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Queue store backends.
const (
	QueueBackendFilesystem = "filesystem"
	QueueBackendRedis      = "redis"
	QueueBackendMemory     = "memory"
)

type Config struct {
	Env  string
	Port int

	Database  DatabaseConfig
	Redis     RedisConfig
	Remote    RemoteConfig
	Health    HealthConfig
	Queue     QueueConfig
	Reconcile ReconcileConfig
	Import    ImportConfig
	CORS      CORSConfig
	Log       LogConfig
}

// DatabaseConfig configures the optional Postgres audit log.
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RemoteConfig points the engine at the remote document store.
type RemoteConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
}

// HealthConfig tunes the connection health monitor.
type HealthConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
}

// QueueConfig tunes the offline write queue.
type QueueConfig struct {
	Backend      string
	Dir          string
	FlushWorkers int
	MaxAttempts  int
}

// ReconcileConfig tunes the identity reconciler.
type ReconcileConfig struct {
	Debounce time.Duration
}

// ImportConfig bounds the bulk import pipeline.
type ImportConfig struct {
	MaxRows int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("AUDIT_DB_ENABLED"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Remote = RemoteConfig{
		BaseURL:        v.GetString("REMOTE_BASE_URL"),
		RequestTimeout: parseDuration(v.GetString("REMOTE_REQUEST_TIMEOUT"), 5*time.Second),
		PollInterval:   parseDuration(v.GetString("REMOTE_POLL_INTERVAL"), 15*time.Second),
	}

	cfg.Health = HealthConfig{
		ProbeInterval: parseDuration(v.GetString("HEALTH_PROBE_INTERVAL"), 30*time.Second),
		ProbeTimeout:  parseDuration(v.GetString("HEALTH_PROBE_TIMEOUT"), 5*time.Second),
		MaxRetries:    v.GetInt("HEALTH_MAX_RETRIES"),
		BackoffBase:   parseDuration(v.GetString("HEALTH_BACKOFF_BASE"), time.Second),
		BackoffCap:    parseDuration(v.GetString("HEALTH_BACKOFF_CAP"), 30*time.Second),
	}

	cfg.Queue = QueueConfig{
		Backend:      v.GetString("QUEUE_BACKEND"),
		Dir:          v.GetString("QUEUE_DIR"),
		FlushWorkers: v.GetInt("QUEUE_FLUSH_WORKERS"),
		MaxAttempts:  v.GetInt("QUEUE_MAX_ATTEMPTS"),
	}

	cfg.Reconcile = ReconcileConfig{
		Debounce: parseDuration(v.GetString("RECONCILE_DEBOUNCE"), 200*time.Millisecond),
	}

	cfg.Import = ImportConfig{
		MaxRows: v.GetInt("IMPORT_MAX_ROWS"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8090)

	v.SetDefault("AUDIT_DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "registry_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("REMOTE_BASE_URL", "http://localhost:4000")
	v.SetDefault("REMOTE_REQUEST_TIMEOUT", "5s")
	v.SetDefault("REMOTE_POLL_INTERVAL", "15s")

	v.SetDefault("HEALTH_PROBE_INTERVAL", "30s")
	v.SetDefault("HEALTH_PROBE_TIMEOUT", "5s")
	v.SetDefault("HEALTH_MAX_RETRIES", 3)
	v.SetDefault("HEALTH_BACKOFF_BASE", "1s")
	v.SetDefault("HEALTH_BACKOFF_CAP", "30s")

	v.SetDefault("QUEUE_BACKEND", QueueBackendFilesystem)
	v.SetDefault("QUEUE_DIR", "./queue")
	v.SetDefault("QUEUE_FLUSH_WORKERS", 4)
	v.SetDefault("QUEUE_MAX_ATTEMPTS", 10)

	v.SetDefault("RECONCILE_DEBOUNCE", "200ms")
	v.SetDefault("IMPORT_MAX_ROWS", 5000)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
