package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "groq", cfg.Provider)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "chatdelon.db", cfg.DBPath)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3000, cfg.MaxTokens)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 10000, cfg.Port)
}

func TestLoadProviderKeyResolution(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenAI") // case-insensitive
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg := Load()

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoadUnknownProviderHasNoKey(t *testing.T) {
	t.Setenv("AI_PROVIDER", "mystery")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	assert.Equal(t, "mystery", cfg.Provider)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("AI_MAX_TOKENS", "plenty")
	t.Setenv("AI_TEMPERATURE", "warm")
	t.Setenv("DB_PORT", "")

	cfg := Load()

	assert.Equal(t, 3000, cfg.MaxTokens)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3306, cfg.DBPort)
}

func TestLoadMySQLSettings(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "chat")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "chatdelon_db")
	t.Setenv("DB_PORT", "3307")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "chat", cfg.DBUser)
	assert.Equal(t, "secret", cfg.DBPassword)
	assert.Equal(t, 3307, cfg.DBPort)
}
