package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_URL: OpenAI-compatible endpoint URL (default: http://localhost:8000/v1)
// - LLM_MODEL: Model name to use (default: meta-llama/Meta-Llama-3.1-8B-Instruct)
// - LLM_API_KEY: Bearer token for the endpoint (optional, local vLLM needs none)
// - LLM_MAX_TOKENS: Maximum tokens per completion (default: 2048)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.1)
// - LLM_TIMEOUT: Request timeout in seconds (default: 600)
//
// Translation Configuration:
// - MAX_CHAR_COUNT: Chunking trigger threshold in characters (default: 3500)
// - CHUNK_TARGET_SIZE: Target chunk size in characters (default: 2000)
// - RETRY_MAX_ATTEMPTS: Attempts per inference call (default: 3)
// - CACHE_MAX_ENTRIES: In-memory cache cap, 0 = unbounded (default: 0)
// - MAINTENANCE_CRON: Schedule for periodic cleanup (default: 0 3 * * *)
//
// Server Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
// - JOB_WORKERS: Async translation workers (default: 2)
// - DATA_DIR: Root for uploads and database (default: ./data)
// - DB_PATH: SQLite file path (default: DATA_DIR/app.db)

type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Server    ServerConfig    `json:"server"`
}

// LLMConfig holds the configuration for the inference endpoint.
// Works with any OpenAI-compatible provider (vLLM, OpenRouter, OpenAI).
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type TranslateConfig struct {
	MaxCharCount     int    `json:"max_char_count"`
	ChunkTargetSize  int    `json:"chunk_target_size"`
	RetryMaxAttempts int    `json:"retry_max_attempts"`
	CacheMaxEntries  int    `json:"cache_max_entries"`
	MaintenanceCron  string `json:"maintenance_cron"`
}

type ServerConfig struct {
	Addr       string `json:"addr"`
	JobWorkers int    `json:"job_workers"`
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`
}

// UploadDir is where raw upload bytes live, under the data dir.
func (c ServerConfig) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "./data")
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "http://localhost:8000/v1"),
			Model:       getEnvString("LLM_MODEL", "meta-llama/Meta-Llama-3.1-8B-Instruct"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvInt("LLM_TIMEOUT", 600),
		},
		Translate: TranslateConfig{
			MaxCharCount:     getEnvInt("MAX_CHAR_COUNT", 3500),
			ChunkTargetSize:  getEnvInt("CHUNK_TARGET_SIZE", 2000),
			RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			CacheMaxEntries:  getEnvInt("CACHE_MAX_ENTRIES", 0),
			MaintenanceCron:  getEnvString("MAINTENANCE_CRON", "0 3 * * *"),
		},
		Server: ServerConfig{
			Addr:       getEnvString("HTTP_ADDR", ":8080"),
			JobWorkers: getEnvInt("JOB_WORKERS", 2),
			DataDir:    dataDir,
			DBPath:     getEnvString("DB_PATH", filepath.Join(dataDir, "app.db")),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIURL == "" {
		return fmt.Errorf("LLM_API_URL is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.Translate.MaxCharCount <= 0 {
		return fmt.Errorf("MAX_CHAR_COUNT must be positive")
	}
	if c.Translate.ChunkTargetSize <= 0 {
		return fmt.Errorf("CHUNK_TARGET_SIZE must be positive")
	}
	if c.Translate.ChunkTargetSize >= c.Translate.MaxCharCount {
		return fmt.Errorf("CHUNK_TARGET_SIZE (%d) must be below MAX_CHAR_COUNT (%d)",
			c.Translate.ChunkTargetSize, c.Translate.MaxCharCount)
	}
	if c.Translate.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.Server.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
