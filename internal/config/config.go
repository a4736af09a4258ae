package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Offer     OfferConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// OfferConfig controls purchase offers.
type OfferConfig struct {
	TTLMinutes int
}

// SchedulerConfig controls the durable task runner and the offer sweeper.
type SchedulerConfig struct {
	PollIntervalMS         int
	BatchSize              int
	LeaseSeconds           int
	MaxAttempts            int
	RetryBaseSeconds       int
	SweeperIntervalSeconds int
}

// RateLimitConfig configures the join admission filter. Zero values disable it.
type RateLimitConfig struct {
	JoinMax           int
	JoinWindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-waitlist"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Offer: OfferConfig{
			TTLMinutes: getEnvAsInt("OFFER_TTL_MINUTES", 30),
		},
		Scheduler: SchedulerConfig{
			PollIntervalMS:         getEnvAsInt("SCHEDULER_POLL_INTERVAL_MS", 1000),
			BatchSize:              getEnvAsInt("SCHEDULER_BATCH_SIZE", 50),
			LeaseSeconds:           getEnvAsInt("SCHEDULER_LEASE_SECONDS", 30),
			MaxAttempts:            getEnvAsInt("SCHEDULER_MAX_ATTEMPTS", 10),
			RetryBaseSeconds:       getEnvAsInt("SCHEDULER_RETRY_BASE_SECONDS", 2),
			SweeperIntervalSeconds: getEnvAsInt("SWEEPER_INTERVAL_SECONDS", 60),
		},
		RateLimit: RateLimitConfig{
			JoinMax:           getEnvAsInt("JOIN_RATE_LIMIT_MAX", 0),
			JoinWindowSeconds: getEnvAsInt("JOIN_RATE_LIMIT_WINDOW_SECONDS", 0),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TTL returns the offer lifetime, defaulting to 30 minutes.
func (o OfferConfig) TTL() time.Duration {
	if o.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(o.TTLMinutes) * time.Minute
}

func (s SchedulerConfig) PollInterval() time.Duration {
	if s.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

func (s SchedulerConfig) Lease() time.Duration {
	if s.LeaseSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.LeaseSeconds) * time.Second
}

func (s SchedulerConfig) RetryBase() time.Duration {
	if s.RetryBaseSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.RetryBaseSeconds) * time.Second
}

func (s SchedulerConfig) SweeperInterval() time.Duration {
	if s.SweeperIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweeperIntervalSeconds) * time.Second
}

// Enabled reports whether a join rate limit is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.JoinMax > 0 && r.JoinWindowSeconds > 0
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.JoinWindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
