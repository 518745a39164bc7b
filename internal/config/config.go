// Package config reads process configuration from environment variables,
// once at start-up.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds everything the server needs: the active AI provider, the
// storage backend, and the upload limits.
type Config struct {
	// Provider selection.
	Provider    string  // openai, deepseek, groq, or anthropic
	APIKey      string  // resolved from the provider's own env variable
	Model       string  // optional per-provider override; empty means default
	Temperature float64 // default sampling temperature
	MaxTokens   int     // default output token bound

	// Context assembly.
	HistoryWindow int // trailing messages included per request
	TokenBudget   int // prompt token ceiling, 0 disables trimming

	// Storage. Driver is sqlite3 or mysql.
	DBDriver   string
	DBPath     string // sqlite3 only
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     int

	// Uploads.
	UploadDir      string
	MaxUploadBytes int64

	Port int
}

// apiKeyEnv maps a provider name to the env variable holding its key.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"groq":      "GROQ_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Load reads all recognized environment variables. It never fails: a
// missing API key is surfaced later by provider resolution, so the server
// can still start with the provider marked inactive.
func Load() Config {
	provider := strings.ToLower(envOrDefault("AI_PROVIDER", "groq"))

	var apiKey string
	if envName, ok := apiKeyEnv[provider]; ok {
		apiKey = os.Getenv(envName)
	}

	return Config{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       os.Getenv(strings.ToUpper(provider) + "_MODEL"),
		Temperature: envFloatOrDefault("AI_TEMPERATURE", 0.7),
		MaxTokens:   envIntOrDefault("AI_MAX_TOKENS", 3000),

		HistoryWindow: envIntOrDefault("CHAT_HISTORY_WINDOW", 10),
		TokenBudget:   envIntOrDefault("CHAT_TOKEN_BUDGET", 0),

		DBDriver:   envOrDefault("DB_DRIVER", "sqlite3"),
		DBPath:     envOrDefault("DB_PATH", "chatdelon.db"),
		DBHost:     envOrDefault("DB_HOST", "localhost"),
		DBUser:     envOrDefault("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     envOrDefault("DB_NAME", "chatdelon_db"),
		DBPort:     envIntOrDefault("DB_PORT", 3306),

		UploadDir:      envOrDefault("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(envIntOrDefault("MAX_UPLOAD_BYTES", 16*1024*1024)),

		Port: envIntOrDefault("PORT", 10000),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
