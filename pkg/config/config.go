package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Redis (distributed rate limiting for outbound calls only)
	Redis RedisConfig

	// External collaborators
	SEC        SECConfig
	FRED       FREDConfig
	Market     MarketConfig
	Classifier ClassifierConfig

	// Pipeline
	Pipeline PipelineConfig

	// Watchlist scheduler
	Watch WatchConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// SECConfig holds SEC EDGAR endpoints
// SEC fair-access policy: User-Agent 필수, 초당 10회 이하
type SECConfig struct {
	UserAgent  string
	TickersURL string
	DataURL    string // companyfacts, submissions
	ArchiveURL string // filing documents
	RateLimit  int    // requests per second
}

// FREDConfig holds FRED (St. Louis Fed) API configuration
type FREDConfig struct {
	APIKey  string
	BaseURL string
}

// MarketConfig holds market data source configuration
type MarketConfig struct {
	PolygonAPIKey  string
	PolygonBaseURL string
	StooqBaseURL   string
	Benchmark      string
	LookbackDays   int
	AuxiliaryURL   string // optional yes/no price feed; empty disables it
}

// ClassifierConfig points at an optional remote classifier service.
// Empty URL means the built-in rule classifiers are used.
type ClassifierConfig struct {
	URL string
}

// PipelineConfig holds run-level settings
type PipelineConfig struct {
	PolicyFile       string
	GateTimeout      time.Duration
	HTTPTimeout      time.Duration
	BatchConcurrency int
}

// WatchConfig holds the watchlist job settings
type WatchConfig struct {
	Tickers  []string
	Schedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External collaborators
		SEC: SECConfig{
			UserAgent:  getEnv("SEC_USER_AGENT", "Mizan mizan@example.com"),
			TickersURL: getEnv("SEC_TICKERS_URL", "https://www.sec.gov/files/company_tickers.json"),
			DataURL:    getEnv("SEC_DATA_URL", "https://data.sec.gov"),
			ArchiveURL: getEnv("SEC_ARCHIVE_URL", "https://www.sec.gov/Archives/edgar/data"),
			RateLimit:  getEnvAsInt("SEC_RATE_LIMIT", 10),
		},

		FRED: FREDConfig{
			APIKey:  getEnv("FRED_API_KEY", ""),
			BaseURL: getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
		},

		Market: MarketConfig{
			PolygonAPIKey:  getEnv("POLYGON_API_KEY", ""),
			PolygonBaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
			StooqBaseURL:   getEnv("STOOQ_BASE_URL", "https://stooq.com"),
			Benchmark:      getEnv("MARKET_BENCHMARK", "SPY"),
			LookbackDays:   getEnvAsInt("MARKET_LOOKBACK_DAYS", 380),
			AuxiliaryURL:   getEnv("MARKET_AUX_URL", ""),
		},

		Classifier: ClassifierConfig{
			URL: getEnv("CLASSIFIER_URL", ""),
		},

		Pipeline: PipelineConfig{
			PolicyFile:       getEnv("POLICY_FILE", ""),
			GateTimeout:      getEnvAsDuration("GATE_TIMEOUT", "20s"),
			HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", "10s"),
			BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
		},

		Watch: WatchConfig{
			Tickers:  getEnvAsList("WATCHLIST", nil),
			Schedule: getEnv("WATCH_SCHEDULE", "0 30 16 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// SEC rejects anonymous clients
	if strings.TrimSpace(c.SEC.UserAgent) == "" {
		return fmt.Errorf("SEC_USER_AGENT is required")
	}

	// Validate environment
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.Pipeline.GateTimeout <= 0 {
		return fmt.Errorf("GATE_TIMEOUT must be positive")
	}
	if c.Pipeline.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be >= 1")
	}
	if c.SEC.RateLimit < 1 {
		return fmt.Errorf("SEC_RATE_LIMIT must be >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
