// Package config provides configuration management for the memory core.
// It loads settings from environment variables with the MEMCORE_ prefix
// and provides sensible defaults for all configuration options.
//
// All numeric thresholds used by the engines (similarity cutoffs, circuit
// breaker trip counts, cool-down windows) live here: the reference defaults
// are starting points, not mandated constants.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the memory core.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Processor ProcessorConfig
	Breaker   BreakerConfig
	Engine    EngineConfig
	Flags     FlagsConfig
	Security  SecurityConfig
	Scheduler SchedulerConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 6464)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for SQLite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string (used when StorageEngine is postgres)
}

// ProcessorConfig contains background processor configuration.
type ProcessorConfig struct {
	NumWorkers       int           // Number of worker goroutines (default: 2)
	QueueSize        int           // Maximum queued tasks before drops (default: 1000)
	BatchConcurrency int           // Bounded concurrency for batch processing (default: 4)
	ShutdownTimeout  time.Duration // Maximum wait for workers to drain on shutdown (default: 30s)
}

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	MaxFailures uint32        // Consecutive failures before the circuit opens (default: 5)
	CoolDown    time.Duration // Open duration before a half-open probe (default: 60s)
}

// EngineConfig contains tuning knobs for the similarity and relationship
// heuristics.
type EngineConfig struct {
	DuplicateThreshold  float64       // Fuzzy similarity above which entries are duplicates (default: 0.85)
	ElaborationFloor    float64       // Fuzzy similarity above which entries elaborate each other (default: 0.4)
	ContradictionFloor  float64       // Token overlap required before contradiction cues apply (default: 0.15)
	SharedKeywordFloor  int           // Shared keywords required for supports/temporal edges (default: 2)
	TemporalWindow      time.Duration // Maximum createdAt gap for temporal_follows (default: 72h)
	ClusterThreshold    float64       // Keyword similarity required to join a cluster (default: 0.3)
	TokenCacheSize      int           // LRU token-set cache entries (default: 512)
	MaxCandidatePool    int           // Cap on candidates loaded per discovery pass (default: 200)
	RelatedMaxDepth     int           // Default hop depth for related-memory retrieval (default: 2)
}

// FlagsConfig contains feature flag / rollout configuration.
type FlagsConfig struct {
	ConfigPath string // Optional YAML rollout file, hot-reloaded when present
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token (required in production mode)
}

// SchedulerConfig contains scheduled consolidation configuration.
type SchedulerConfig struct {
	ConsolidationEnabled bool   // Enable scheduled consolidation runs (default: false)
	ConsolidationSpec    string // Cron spec for consolidation runs (default: "0 3 * * *")
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the MEMCORE_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("MEMCORE_PORT", 6464),
			Host: getEnv("MEMCORE_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("MEMCORE_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("MEMCORE_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("MEMCORE_POSTGRES_DSN", ""),
		},
		Processor: ProcessorConfig{
			NumWorkers:       getEnvInt("MEMCORE_NUM_WORKERS", 2),
			QueueSize:        getEnvInt("MEMCORE_QUEUE_SIZE", 1000),
			BatchConcurrency: getEnvInt("MEMCORE_BATCH_CONCURRENCY", 4),
			ShutdownTimeout:  getEnvDuration("MEMCORE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: uint32(getEnvInt("MEMCORE_BREAKER_MAX_FAILURES", 5)),
			CoolDown:    getEnvDuration("MEMCORE_BREAKER_COOL_DOWN", 60*time.Second),
		},
		Engine: EngineConfig{
			DuplicateThreshold: getEnvFloat("MEMCORE_DUPLICATE_THRESHOLD", 0.85),
			ElaborationFloor:   getEnvFloat("MEMCORE_ELABORATION_FLOOR", 0.4),
			ContradictionFloor: getEnvFloat("MEMCORE_CONTRADICTION_FLOOR", 0.15),
			SharedKeywordFloor: getEnvInt("MEMCORE_SHARED_KEYWORD_FLOOR", 2),
			TemporalWindow:     getEnvDuration("MEMCORE_TEMPORAL_WINDOW", 72*time.Hour),
			ClusterThreshold:   getEnvFloat("MEMCORE_CLUSTER_THRESHOLD", 0.3),
			TokenCacheSize:     getEnvInt("MEMCORE_TOKEN_CACHE_SIZE", 512),
			MaxCandidatePool:   getEnvInt("MEMCORE_MAX_CANDIDATE_POOL", 200),
			RelatedMaxDepth:    getEnvInt("MEMCORE_RELATED_MAX_DEPTH", 2),
		},
		Flags: FlagsConfig{
			ConfigPath: getEnv("MEMCORE_FLAGS_CONFIG", ""),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("MEMCORE_SECURITY_MODE", "development"),
			APIToken:     getEnv("MEMCORE_API_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			ConsolidationEnabled: getEnvBool("MEMCORE_CONSOLIDATION_ENABLED", false),
			ConsolidationSpec:    getEnv("MEMCORE_CONSOLIDATION_SPEC", "0 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Processor.NumWorkers < 1 {
		return fmt.Errorf("config: NumWorkers must be >= 1, got %d", c.Processor.NumWorkers)
	}
	if c.Processor.QueueSize < 1 {
		return fmt.Errorf("config: QueueSize must be >= 1, got %d", c.Processor.QueueSize)
	}
	if c.Processor.BatchConcurrency < 1 {
		return fmt.Errorf("config: BatchConcurrency must be >= 1, got %d", c.Processor.BatchConcurrency)
	}
	if c.Breaker.MaxFailures < 1 {
		return fmt.Errorf("config: Breaker.MaxFailures must be >= 1, got %d", c.Breaker.MaxFailures)
	}
	if c.Engine.DuplicateThreshold <= 0 || c.Engine.DuplicateThreshold > 1 {
		return fmt.Errorf("config: DuplicateThreshold must be in (0, 1], got %f", c.Engine.DuplicateThreshold)
	}
	if c.Engine.ElaborationFloor >= c.Engine.DuplicateThreshold {
		return fmt.Errorf("config: ElaborationFloor (%f) must be below DuplicateThreshold (%f)",
			c.Engine.ElaborationFloor, c.Engine.DuplicateThreshold)
	}
	switch c.Storage.StorageEngine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}
	if c.Storage.StorageEngine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: MEMCORE_POSTGRES_DSN is required for the postgres engine")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "90s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
