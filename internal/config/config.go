package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const environmentProduction = "production"

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string
	LogLevel    string

	// Audio
	SampleRate int

	// Generation
	GeminiAPIKey string
	GeminiModel  string

	// Observability
	SentryDSN string

	// Where render/midi commands write files by default
	ExportDir string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	sr, err := strconv.Atoi(getEnv("SAMPLE_RATE", "44100"))
	if err != nil || sr < 8000 || sr > 192000 {
		return nil, fmt.Errorf("config: invalid SAMPLE_RATE %q", os.Getenv("SAMPLE_RATE"))
	}
	return &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		SampleRate:   sr,
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
		ExportDir:    getEnv("EXPORT_DIR", "."),
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return c.Environment == environmentProduction
}
