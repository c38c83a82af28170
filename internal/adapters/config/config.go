package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"kitakita/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Agents        AgentsConfig
	Advisor       AdvisorConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
	HTTP          HTTPConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"kitakita"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	// TTL applied to cached financial snapshots
	SnapshotTTL time.Duration `envconfig:"REDIS_SNAPSHOT_TTL" default:"5m"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"kitakita"`
}

// AIConfig covers the Gemini gateway: generation parameters, the outbound
// request budget and the retry policy applied to 429 responses.
type AIConfig struct {
	GeminiKey       string        `envconfig:"GEMINI_API_KEY" required:"true"`
	Model           string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout         time.Duration `envconfig:"GEMINI_TIMEOUT" default:"30s"`
	Temperature     float64       `envconfig:"GEMINI_TEMPERATURE" default:"0.7"`
	TopK            int           `envconfig:"GEMINI_TOP_K" default:"40"`
	TopP            float64       `envconfig:"GEMINI_TOP_P" default:"0.95"`
	MaxOutputTokens int           `envconfig:"GEMINI_MAX_OUTPUT_TOKENS" default:"2048"`

	RequestsPerMinute int  `envconfig:"AI_REQUESTS_PER_MINUTE" default:"60"`
	UseRedisLimiter   bool `envconfig:"AI_USE_REDIS_LIMITER" default:"false"`

	RetryMaxAttempts  int           `envconfig:"AI_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialDelay time.Duration `envconfig:"AI_RETRY_INITIAL_DELAY" default:"1s"`
	RetryMaxDelay     time.Duration `envconfig:"AI_RETRY_MAX_DELAY" default:"32s"`
	RetryMultiplier   float64       `envconfig:"AI_RETRY_MULTIPLIER" default:"2.0"`
	RetryMaxJitter    time.Duration `envconfig:"AI_RETRY_MAX_JITTER" default:"1s"`
}

// AgentsConfig tunes the per-user agent pool.
type AgentsConfig struct {
	// Idle agents are evicted and rebuilt on next use
	IdleTTL time.Duration `envconfig:"AGENTS_IDLE_TTL" default:"30m"`
}

// AdvisorConfig bounds how often one user can refresh dashboard insights.
type AdvisorConfig struct {
	RefreshPerMinute float64 `envconfig:"ADVISOR_REFRESH_PER_MINUTE" default:"6"`
	RefreshBurst     int     `envconfig:"ADVISOR_REFRESH_BURST" default:"2"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	InsightRefreshInterval time.Duration `envconfig:"WORKER_INSIGHT_REFRESH_INTERVAL" default:"15m"`
	RecoveryProbeInterval  time.Duration `envconfig:"WORKER_RECOVERY_PROBE_INTERVAL" default:"1m"`

	InsightRefreshEnabled bool `envconfig:"WORKER_INSIGHT_REFRESH_ENABLED" default:"true"`
	RecoveryProbeEnabled  bool `envconfig:"WORKER_RECOVERY_PROBE_ENABLED" default:"true"`

	// Max users processed concurrently by the insight refresher
	InsightRefreshMaxConcurrency int `envconfig:"WORKER_INSIGHT_REFRESH_MAX_CONCURRENCY" default:"5"`
}

type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
