package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the screener.
// Only this package reads environment variables.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (postgres snapshot source)
	Database DatabaseConfig

	// Redis (run cache backend)
	Redis RedisConfig

	// Remote market data
	Eastmoney EastmoneyConfig

	// Screener defaults (CLI flags override per run)
	Screener ScreenerConfig

	// Run cache
	Cache CacheConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// EastmoneyConfig holds the remote board/price data source configuration.
type EastmoneyConfig struct {
	BaseURL     string
	RateLimit   float64 // requests per second
	MaxRetries  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
}

// ScreenerConfig holds default run parameters.
type ScreenerConfig struct {
	SignalsPath  string
	ThemeMapPath string
	SnapshotDir  string
	OutputDir    string
	TopN         int
	LookbackDays int
	MinHistory   int
	Provider     string
}

// CacheConfig holds run-cache settings.
type CacheConfig struct {
	Backend string // file, redis, off
	Dir     string
	TTL     time.Duration
}

// SchedulerConfig holds the daily screen schedule.
type SchedulerConfig struct {
	CronSpec string
	Timezone string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Eastmoney: EastmoneyConfig{
			BaseURL:     getEnv("EM_BASE_URL", "https://push2.eastmoney.com"),
			RateLimit:   getEnvAsFloat("EM_RATE_LIMIT", 2.5),
			MaxRetries:  getEnvAsInt("EM_MAX_RETRIES", 3),
			RetryDelay:  getEnvAsDuration("EM_RETRY_DELAY", "1s"),
			HTTPTimeout: getEnvAsDuration("EM_HTTP_TIMEOUT", "30s"),
		},

		Screener: ScreenerConfig{
			SignalsPath:  getEnv("SIGNALS_PATH", "signals.yaml"),
			ThemeMapPath: getEnv("THEME_MAP_PATH", "theme_to_industry.csv"),
			SnapshotDir:  getEnv("SNAPSHOT_DIR", "data/snapshots"),
			OutputDir:    getEnv("OUTPUT_DIR", "outputs"),
			TopN:         getEnvAsInt("TOP_N", 20),
			LookbackDays: getEnvAsInt("LOOKBACK_DAYS", 130),
			MinHistory:   getEnvAsInt("MIN_HISTORY", 61),
			Provider:     getEnv("PROVIDER", "mock"),
		},

		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "file"),
			Dir:     getEnv("CACHE_DIR", ".cache"),
			TTL:     getEnvAsDuration("CACHE_TTL", "24h"),
		},

		Scheduler: SchedulerConfig{
			CronSpec: getEnv("SCHEDULE_CRON", "30 15 * * MON-FRI"),
			Timezone: getEnv("SCHEDULE_TZ", "Asia/Shanghai"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field constraints. DATABASE_URL is only required
// when the postgres provider is selected; the snapshot and mock providers
// run without a database.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Screener.Provider == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres provider")
	}
	switch c.Cache.Backend {
	case "file", "redis", "off":
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: file, redis, off")
	}
	if c.Screener.MinHistory < 2 {
		return fmt.Errorf("MIN_HISTORY must be at least 2")
	}
	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
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

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fallback, _ := time.ParseDuration(defaultValue)
		return fallback
	}
	return value
}
