package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration assembled from the environment.
type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Session   Session
	Identity  Identity
	Kafka     Kafka
	Catalog   Catalog
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogFormat       string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// Database configures the Postgres pool. An empty URL selects in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the optional catalog liveness cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Session holds temporary session lifetimes and housekeeping cadence.
type Session struct {
	SigningKey       string
	TTL              time.Duration
	GracePeriod      time.Duration
	SweepInterval    time.Duration
	ReservationLease time.Duration
}

// Identity configures the external identity provider admin API.
// An empty URL selects the in-memory provider.
type Identity struct {
	BaseURL        string
	ServiceKey     string
	Timeout        time.Duration
	BreakerFailure int
}

// Kafka configures the audit outbox relay. Empty brokers disable it.
type Kafka struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
	BatchSize    int
}

// Catalog configures product liveness caching.
type Catalog struct {
	CacheTTL time.Duration
}

// RateLimit configures per-IP sliding-window budgets. The window is shared
// through Redis when it is configured.
type RateLimit struct {
	Enabled           bool
	GlobalRequests    int
	GlobalWindow      time.Duration
	MigrationRequests int
	MigrationWindow   time.Duration
}

// devSigningKey is only accepted outside production.
const devSigningKey = "dev-secret-key-change-in-production"

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            getString("ELIGO_ADDR", ":8080"),
			Environment:     getString("ELIGO_ENV", "development"),
			LogFormat:       getString("LOG_FORMAT", "json"),
			LogLevel:        getString("LOG_LEVEL", "info"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     getBool("DATABASE_APPLY_SCHEMA", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Session: Session{
			SigningKey:       os.Getenv("SESSION_SIGNING_KEY"),
			TTL:              getDuration("SESSION_TTL", 24*time.Hour),
			GracePeriod:      getDuration("SESSION_GRACE_PERIOD", 7*24*time.Hour),
			SweepInterval:    getDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			ReservationLease: getDuration("MIGRATION_RESERVATION_TTL", 10*time.Minute),
		},
		Identity: Identity{
			BaseURL:        os.Getenv("IDENTITY_URL"),
			ServiceKey:     os.Getenv("IDENTITY_SERVICE_KEY"),
			Timeout:        getDuration("IDENTITY_TIMEOUT", 10*time.Second),
			BreakerFailure: getInt("IDENTITY_BREAKER_FAILURES", 5),
		},
		Kafka: Kafka{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:   getString("KAFKA_AUDIT_TOPIC", "eligo.audit"),
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		Catalog: Catalog{
			CacheTTL: getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimit{
			Enabled:           getBool("RATE_LIMIT_ENABLED", true),
			GlobalRequests:    getInt("RATE_LIMIT_GLOBAL_REQUESTS", 500),
			GlobalWindow:      getDuration("RATE_LIMIT_GLOBAL_WINDOW", 15*time.Minute),
			MigrationRequests: getInt("RATE_LIMIT_MIGRATION_REQUESTS", 20),
			MigrationWindow:   getDuration("RATE_LIMIT_MIGRATION_WINDOW", 15*time.Minute),
		},
	}

	if cfg.Session.SigningKey == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("SESSION_SIGNING_KEY is required in production")
		}
		cfg.Session.SigningKey = devSigningKey
	}
	if cfg.Identity.BaseURL == "" && cfg.IsProduction() {
		return Config{}, fmt.Errorf("IDENTITY_URL is required in production")
	}
	if cfg.Session.TTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive")
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
