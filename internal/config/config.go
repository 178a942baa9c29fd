package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryStore bool
	UseMemoryQueue bool
	WorkerCount    int
	QueueBuffer    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StateTTL       time.Duration
	StoreTimeout   time.Duration
	DedupWindow    time.Duration
	DedupBucket    time.Duration
	MaxMessageLog  int
	MaxAttempts    int
	RetryBaseDelay time.Duration

	// TuningFile points at an optional YAML file overriding the scoring
	// rubric, routing policy, and merge thresholds.
	TuningFile string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            strings.ToLower(getEnv("ENV", "development")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		QueueBuffer:    getEnvAsInt("QUEUE_BUFFER", 256),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		StateTTL:       getEnvAsDuration("STATE_TTL", 0),
		StoreTimeout:   getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		DedupWindow:    getEnvAsDuration("DEDUP_WINDOW", 15*time.Minute),
		DedupBucket:    getEnvAsDuration("DEDUP_BUCKET", 5*time.Minute),
		MaxMessageLog:  getEnvAsInt("MAX_MESSAGE_LOG", 250),
		MaxAttempts:    getEnvAsInt("MAX_STORE_ATTEMPTS", 3),
		RetryBaseDelay: getEnvAsDuration("RETRY_BASE_DELAY", 50*time.Millisecond),

		TuningFile: getEnv("TUNING_FILE", ""),
	}
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
