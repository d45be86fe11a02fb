package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// A/B test evaluation
	ABTest ABTestConfig

	// Outbound notifications
	Webhook WebhookConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ABTestConfig controls the evaluation cycle that picks campaign winners
type ABTestConfig struct {
	Schedule          string        // cron expression with seconds field
	Workers           int           // tests evaluated in parallel
	MaxRetries        int           // fetch-evaluate-write retries per test
	RetryDelay        time.Duration // initial backoff, doubled per attempt
	LockTTL           time.Duration // per-test write lock lifetime
	CacheTTL          time.Duration // latest evaluation cache lifetime
	HistoryRetention  time.Duration // evaluation rows older than this are purged
	RetentionSchedule string
}

// WebhookConfig holds the winner notification endpoint
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "careerforge"),
			User:            getEnv("DB_USER", "careerforge"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		ABTest: ABTestConfig{
			Schedule:          getEnv("ABTEST_SCHEDULE", "0 0 3 * * *"),
			Workers:           getEnvAsInt("ABTEST_WORKERS", 4),
			MaxRetries:        getEnvAsInt("ABTEST_MAX_RETRIES", 3),
			RetryDelay:        getEnvAsDuration("ABTEST_RETRY_DELAY", "2s"),
			LockTTL:           getEnvAsDuration("ABTEST_LOCK_TTL", "2m"),
			CacheTTL:          getEnvAsDuration("ABTEST_CACHE_TTL", "24h"),
			HistoryRetention:  getEnvAsDuration("ABTEST_HISTORY_RETENTION", "2160h"),
			RetentionSchedule: getEnv("ABTEST_RETENTION_SCHEDULE", "0 30 4 * * *"),
		},

		Webhook: WebhookConfig{
			URL:     getEnv("WEBHOOK_URL", ""),
			Timeout: getEnvAsDuration("WEBHOOK_TIMEOUT", "10s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile reads an explicit .env file, then the environment.
// Variables already set in the environment win.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return Load()
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.ABTest.Workers < 1 {
		return fmt.Errorf("ABTEST_WORKERS must be at least 1")
	}

	if c.ABTest.MaxRetries < 0 {
		return fmt.Errorf("ABTEST_MAX_RETRIES must not be negative")
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
