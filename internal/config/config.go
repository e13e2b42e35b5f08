package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// StoragePolicy controls what happens to a result whose vector-store write failed.
type StoragePolicy string

const (
	// StorageFailOpen logs the storage error and keeps the result status untouched.
	StorageFailOpen StoragePolicy = "fail-open"
	// StorageFailClosed downgrades results whose write failed so they dead-letter.
	StorageFailClosed StoragePolicy = "fail-closed"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"vektor"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"vektor"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"720h"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQChannel string `envconfig:"NSQ_CHANNEL" default:"embedder"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	DefaultModel string `envconfig:"DEFAULT_MODEL" default:"gemini-embedding-001"`

	// Batching
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"16"`
	BatchInterval   time.Duration `envconfig:"BATCH_INTERVAL" default:"5s"`
	ItemTimeout     time.Duration `envconfig:"ITEM_TIMEOUT" default:"60s"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	BatchMaxRetries int           `envconfig:"BATCH_MAX_RETRIES" default:"3"`
	WorkerPoolSize  int           `envconfig:"WORKER_POOL_SIZE" default:"8"`
	ParallelBatches bool          `envconfig:"PARALLEL_BATCHES" default:"true"`

	// Resilience
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialWait time.Duration `envconfig:"RETRY_INITIAL_WAIT" default:"500ms"`
	RetryMaxWait     time.Duration `envconfig:"RETRY_MAX_WAIT" default:"10s"`
	BreakerThreshold uint32        `envconfig:"BREAKER_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`

	StoragePolicy StoragePolicy `envconfig:"STORAGE_FAILURE_POLICY" default:"fail-open"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8082"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Bootstrap resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("%w: DEFAULT_MODEL", ErrMissingRequired)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be >= 1, got %d", c.BatchSize)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be >= 1, got %d", c.WorkerPoolSize)
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("BREAKER_THRESHOLD must be >= 1, got %d", c.BreakerThreshold)
	}
	switch c.StoragePolicy {
	case StorageFailOpen, StorageFailClosed:
	default:
		return fmt.Errorf("STORAGE_FAILURE_POLICY must be fail-open or fail-closed, got %q", c.StoragePolicy)
	}
	return nil
}
